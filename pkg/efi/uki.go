package efi

import (
	"os"
	"strings"
)

// UKI add-on directory/file naming conventions (§6 "UKI add-on files").
const (
	ukiAddonDirSuffix  = ".extra.d"
	ukiAddonFileSuffix = ".addon.efi"
)

// UKIAddonDir returns the add-on directory path associated with a UKI
// binary: "<ukiPath>.extra.d".
func UKIAddonDir(ukiPath string) string {
	return ukiPath + ukiAddonDirSuffix
}

// IsUKIAddonFile reports whether path is a regular file whose name ends in
// ".addon.efi".
func IsUKIAddonFile(path string) bool {
	if !strings.HasSuffix(path, ukiAddonFileSuffix) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// UKINameFromAddonFile strips the ".addon.efi" suffix from an add-on file's
// base name, returning the UKI name it augments.
func UKINameFromAddonFile(addonFileName string) (string, bool) {
	return strings.CutSuffix(addonFileName, ukiAddonFileSuffix)
}
