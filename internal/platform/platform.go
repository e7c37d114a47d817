package platform

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Windows Platform = "windows"
	Unknown Platform = "unknown"
)

// Info contains the platform-specific scan defaults
type Info struct {
	OS       Platform
	HomeDir  string
	Username string

	// DefaultRoots are scanned when the configuration names none
	DefaultRoots []string

	// AlwaysExcluded names are dropped when they appear directly under a root
	AlwaysExcluded []string

	// TraverseHidden names are walked even though the OS marks them hidden
	TraverseHidden []string

	// SystemFileAllow names are counted even though the OS marks them system files
	SystemFileAllow []string

	// ProfileCacheDirs are paths relative to the profile root that are forced
	// to excluded once a full scan finishes
	ProfileCacheDirs []string
}

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	case "windows":
		return Windows
	default:
		return Unknown
	}
}

// GetInfo returns platform-specific information
func GetInfo() (*Info, error) {
	platform := Detect()

	// Get current user info
	currentUser, err := user.Current()
	if err != nil {
		return nil, err
	}

	homeDir := currentUser.HomeDir
	username := currentUser.Username

	var info *Info

	switch platform {
	case MacOS:
		info = getMacOSInfo(homeDir, username)
	case Linux:
		info = getLinuxInfo(homeDir, username)
	case Windows:
		info = getWindowsInfo(homeDir, username)
	default:
		return nil, ErrUnsupportedPlatform
	}

	return info, nil
}

// GetUserConfigDir returns the directory that holds dataguard's configuration
func GetUserConfigDir() (string, error) {
	if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
		return configDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config"), nil
}

// IsAlwaysExcluded reports whether name is one of the top-level names never scanned
func (i *Info) IsAlwaysExcluded(name string) bool {
	return containsFold(i.AlwaysExcluded, name)
}

// TraversesHidden reports whether a hidden directory with this name is still walked
func (i *Info) TraversesHidden(name string) bool {
	return containsFold(i.TraverseHidden, name)
}

// AllowsSystemFile reports whether a system-marked file with this name is still counted
func (i *Info) AllowsSystemFile(name string) bool {
	return containsFold(i.SystemFileAllow, name)
}

func containsFold(list []string, name string) bool {
	for _, item := range list {
		if strings.EqualFold(item, name) {
			return true
		}
	}
	return false
}

// Errors
var (
	ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}
)

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
