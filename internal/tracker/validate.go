package tracker

import (
	"fmt"
	"os"
	"strings"
)

// MinAudioBytes is the smallest local audio file accepted for transcription.
const MinAudioBytes = 1024

// ValidateStatus rejects anything that is not a lifecycle member.
func ValidateStatus(value Status) error {
	if !value.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, string(value))
	}
	return nil
}

// ValidateSetting rejects values that are not keys of table.
func ValidateSetting(value string, table map[string]string) error {
	if _, ok := table[value]; !ok {
		return fmt.Errorf("%w: %q (allowed: %s)", ErrInvalidSetting, value, strings.Join(SettingKeys(table), ", "))
	}
	return nil
}

// ValidateQuality checks value against QualityModels.
func ValidateQuality(value string) error {
	if err := ValidateSetting(value, QualityModels); err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	return nil
}

// ValidateCompute checks value against ComputeTypes.
func ValidateCompute(value string) error {
	if err := ValidateSetting(value, ComputeTypes); err != nil {
		return fmt.Errorf("compute: %w", err)
	}
	return nil
}

// ValidateLocalPath accepts an empty path. Otherwise the path must name an
// existing regular file of at least MinAudioBytes.
func ValidateLocalPath(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPath, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalidPath, path)
	}
	if info.Size() < MinAudioBytes {
		return fmt.Errorf("%w: %s is %d bytes, need at least %d", ErrInvalidPath, path, info.Size(), MinAudioBytes)
	}
	return nil
}
