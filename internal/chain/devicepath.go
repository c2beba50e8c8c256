package chain

import (
	"net/url"
	"strings"
)

// DeviceKind tells a restore executor how a backup device is addressed
type DeviceKind string

const (
	// DeviceKindURL is a device restored FROM URL (blob storage)
	DeviceKindURL DeviceKind = "URL"
	// DeviceKindDisk is a device restored FROM DISK (local or UNC path)
	DeviceKindDisk DeviceKind = "DISK"
)

// Device names are validated with Windows path rules on every platform: they
// are paths on the SQL Server hosts, not on the machine resolving the chain.

// IsValidDevicePath reports whether a physical device name can be used for a
// restore. Third-party tools are known to write garbage into
// backupmediafamily, so such rows are filtered before resolution.
func IsValidDevicePath(path string) bool {
	return IsValidURL(path) || IsValidFilePath(path)
}

// IsValidURL reports whether path is an absolute http(s) URL or a UNC path,
// and names a file with an extension.
func IsValidURL(path string) bool {
	if IsURL(path) {
		return true
	}
	return isUNC(path) && !hasInvalidPathChars(path) && HasExtension(path)
}

// IsURL reports whether path is an absolute http(s) URL naming a file with an
// extension. UNC paths are not URLs.
func IsURL(path string) bool {
	u, err := url.Parse(path)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	return HasExtension(path)
}

// IsValidFilePath reports whether path is a rooted file path with an
// extension and no invalid characters. Relative paths are rejected because
// the restore usually runs on another server.
func IsValidFilePath(path string) bool {
	if path == "" || hasInvalidPathChars(path) {
		return false
	}
	return isRooted(path) && HasExtension(path)
}

// HasExtension reports whether the last path segment contains a '.' that is
// not its final character.
func HasExtension(path string) bool {
	segment := path
	if i := strings.LastIndexAny(path, `/\:`); i >= 0 {
		segment = path[i+1:]
	}
	dot := strings.LastIndexByte(segment, '.')
	return dot >= 0 && dot < len(segment)-1
}

// KindOf classifies a device name
func KindOf(path string) DeviceKind {
	if IsURL(path) {
		return DeviceKindURL
	}
	return DeviceKindDisk
}

// FilterValid splits records into those with a usable device path and those
// without. It never fails.
func FilterValid(records []Record) (kept, dropped []Record) {
	for _, r := range records {
		if IsValidDevicePath(r.PhysicalDeviceName) {
			kept = append(kept, r)
		} else {
			dropped = append(dropped, r)
		}
	}
	return kept, dropped
}

// CombinePaths joins a directory and a file name using the separator already
// present in dir.
func CombinePaths(dir, file string) string {
	if dir == "" {
		return file
	}
	if file == "" {
		return dir
	}
	sep := "/"
	if strings.Contains(dir, `\`) {
		sep = `\`
	}
	return strings.TrimSuffix(dir, sep) + sep + strings.TrimPrefix(file, sep)
}

func hasInvalidPathChars(path string) bool {
	for _, r := range path {
		if r < 32 {
			return true
		}
		switch r {
		case '"', '<', '>', '|':
			return true
		}
	}
	return false
}

func isUNC(path string) bool {
	return strings.HasPrefix(path, `\\`) && len(path) > 2
}

func isRooted(path string) bool {
	if strings.HasPrefix(path, `\`) || strings.HasPrefix(path, "/") {
		return true
	}
	if len(path) >= 3 && isDriveLetter(path[0]) && path[1] == ':' && (path[2] == '\\' || path[2] == '/') {
		return true
	}
	return false
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
