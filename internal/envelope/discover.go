// Package envelope locates the host mail application's on-disk data root and
// computes the absolute path to individual per-message files.
package envelope

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// MailDirectoryNotFoundError is returned when the host mail root does not exist.
type MailDirectoryNotFoundError struct{ Path string }

func (e *MailDirectoryNotFoundError) Error() string {
	return fmt.Sprintf("mail directory not found: %s", e.Path)
}

// NoVersionDirectoryError is returned when no "V<digits>" directory exists
// under the mail root.
type NoVersionDirectoryError struct{ Path string }

func (e *NoVersionDirectoryError) Error() string {
	return fmt.Sprintf("no version directory under: %s", e.Path)
}

// EnvelopeIndexNotFoundError is returned when the "Envelope Index" database
// is missing from the selected version directory.
type EnvelopeIndexNotFoundError struct{ Path string }

func (e *EnvelopeIndexNotFoundError) Error() string {
	return fmt.Sprintf("envelope index not found: %s", e.Path)
}

// PermissionDeniedError carries the exact path the caller lacked access to,
// plus a remediation string referencing the host OS's privacy controls.
type PermissionDeniedError struct {
	Path      string
	Guidance  string
	Underlying error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s (%s)", e.Path, e.Guidance)
}

func (e *PermissionDeniedError) Unwrap() error { return e.Underlying }

const remediationGuidance = "grant Full Disk Access to this application in System Settings > Privacy & Security"

// Result is the outcome of a successful discovery.
type Result struct {
	MailRoot     string // caller-supplied or default root, e.g. ~/Library/Mail
	VersionDir   string // e.g. "V10"
	DataRoot     string // MailRoot/VersionDir
	EnvelopePath string // DataRoot/MailData/Envelope Index
}

var versionDirRe = regexp.MustCompile(`^V(\d+)$`)

// Discover finds the host envelope database. If custom is non-empty it is
// validated directly as the envelope index path and mailRoot/versionDir are
// derived from its parents; otherwise mailRoot is enumerated for the
// lexically-numeric-maximum "V<digits>" directory.
func Discover(mailRoot, custom string) (*Result, error) {
	if custom != "" {
		return discoverCustom(custom)
	}
	return discoverDefault(mailRoot)
}

func discoverCustom(custom string) (*Result, error) {
	if err := checkReadable(custom); err != nil {
		return nil, err
	}
	dataRoot := filepath.Dir(filepath.Dir(custom)) // strip "MailData/Envelope Index"
	versionDir := filepath.Base(dataRoot)
	mailRoot := filepath.Dir(dataRoot)
	return &Result{
		MailRoot:     mailRoot,
		VersionDir:   versionDir,
		DataRoot:     dataRoot,
		EnvelopePath: custom,
	}, nil
}

func discoverDefault(mailRoot string) (*Result, error) {
	if _, err := os.Stat(mailRoot); err != nil {
		if os.IsNotExist(err) {
			return nil, &MailDirectoryNotFoundError{Path: mailRoot}
		}
		if isPermissionErr(err) {
			return nil, &PermissionDeniedError{Path: mailRoot, Guidance: remediationGuidance, Underlying: err}
		}
		return nil, eris.Wrapf(err, "stat mail root %q", mailRoot)
	}

	entries, err := os.ReadDir(mailRoot)
	if err != nil {
		if isPermissionErr(err) {
			return nil, &PermissionDeniedError{Path: mailRoot, Guidance: remediationGuidance, Underlying: err}
		}
		return nil, eris.Wrapf(err, "read mail root %q", mailRoot)
	}

	bestVersion := -1
	bestName := ""
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := versionDirRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, convErr := strconv.Atoi(m[1])
		if convErr != nil {
			continue
		}
		if n > bestVersion {
			bestVersion = n
			bestName = e.Name()
		}
	}
	if bestName == "" {
		return nil, &NoVersionDirectoryError{Path: mailRoot}
	}

	dataRoot := filepath.Join(mailRoot, bestName)
	envelopePath := filepath.Join(dataRoot, "MailData", "Envelope Index")
	if _, err := os.Stat(envelopePath); err != nil {
		if os.IsNotExist(err) {
			return nil, &EnvelopeIndexNotFoundError{Path: envelopePath}
		}
		if isPermissionErr(err) {
			return nil, &PermissionDeniedError{Path: envelopePath, Guidance: remediationGuidance, Underlying: err}
		}
		return nil, eris.Wrapf(err, "stat envelope index %q", envelopePath)
	}

	return &Result{
		MailRoot:     mailRoot,
		VersionDir:   bestName,
		DataRoot:     dataRoot,
		EnvelopePath: envelopePath,
	}, nil
}

func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &EnvelopeIndexNotFoundError{Path: path}
		}
		if isPermissionErr(err) {
			return &PermissionDeniedError{Path: path, Guidance: remediationGuidance, Underlying: err}
		}
		return eris.Wrapf(err, "stat %q", path)
	}
	if info.IsDir() {
		return &EnvelopeIndexNotFoundError{Path: path}
	}
	f, err := os.Open(path)
	if err != nil {
		if isPermissionErr(err) {
			return &PermissionDeniedError{Path: path, Guidance: remediationGuidance, Underlying: err}
		}
		return eris.Wrapf(err, "open %q", path)
	}
	_ = f.Close()
	return nil
}

func isPermissionErr(err error) bool {
	return errors.Is(err, os.ErrPermission)
}

var uuidDirRe = regexp.MustCompile(`^[0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12}$`)

// MessageFilePath computes the absolute path to a message file given its
// host row id and the mailbox's absolute path, per the partition scheme: a
// UUID-named subdirectory under mailboxPath, then a bucketed Data/ layout.
// Falls back to the legacy mailboxPath/Messages/{rowID}.emlx layout when no
// UUID subdirectory is present. Returns ("", false) if no candidate exists.
func MessageFilePath(rowID int64, mailboxPath string) (string, bool) {
	uuidDir := findUUIDDir(mailboxPath)
	if uuidDir != "" {
		p1 := (rowID / 1000) % 10
		p2 := rowID / 10000
		candidates := []string{
			filepath.Join(uuidDir, "Data", strconv.FormatInt(p1, 10), strconv.FormatInt(p2, 10), "Messages"),
			filepath.Join(uuidDir, "Data", strconv.FormatInt(p1, 10), "Messages"),
			filepath.Join(uuidDir, "Data", "Messages"),
		}
		for _, dir := range candidates {
			for _, name := range messageFileNames(rowID) {
				p := filepath.Join(dir, name)
				if fileExists(p) {
					return p, true
				}
			}
		}
	}

	legacyDir := filepath.Join(mailboxPath, "Messages")
	for _, name := range messageFileNames(rowID) {
		p := filepath.Join(legacyDir, name)
		if fileExists(p) {
			return p, true
		}
	}
	return "", false
}

func messageFileNames(rowID int64) []string {
	base := strconv.FormatInt(rowID, 10)
	return []string{base + ".emlx", base + ".partial.emlx"}
}

func findUUIDDir(mailboxPath string) string {
	entries, err := os.ReadDir(mailboxPath)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := strings.ToUpper(e.Name())
		if uuidDirRe.MatchString(name) {
			return filepath.Join(mailboxPath, e.Name())
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
