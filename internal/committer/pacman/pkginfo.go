package pacman

import (
	"archive/tar"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ralt/reposyncd/internal/models"
	"github.com/ralt/reposyncd/internal/scanner"
	"github.com/ralt/reposyncd/internal/utils"
	"github.com/sirupsen/logrus"
)

// ParsePackage reads the metadata of a package payload from its .PKGINFO
// and computes the checksums recorded in the database
func ParsePackage(path string) (*models.Package, error) {
	// Calculate checksums
	checksums, err := utils.CalculateChecksums(path)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksums: %w", err)
	}

	pkginfo, err := extractPKGINFO(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract .PKGINFO: %w", err)
	}

	pkg, err := parsePKGINFO(pkginfo)
	if err != nil {
		return nil, fmt.Errorf("failed to parse .PKGINFO: %w", err)
	}

	pkg.Size = checksums.Size
	pkg.MD5Sum = checksums.MD5
	pkg.SHA256Sum = checksums.SHA256

	return pkg, nil
}

// extractPKGINFO extracts the .PKGINFO file from a package payload
func extractPKGINFO(path string) ([]byte, error) {
	compression, err := scanner.DetectCompression(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := utils.NewReader(f, compression)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// .PKGINFO is the first entry of a well-formed package, but do not rely on it
	tarReader := tar.NewReader(r)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if header.Name == ".PKGINFO" {
			return io.ReadAll(tarReader)
		}
	}

	return nil, fmt.Errorf(".PKGINFO not found in package")
}

// parsePKGINFO parses the key = value lines of a .PKGINFO file
func parsePKGINFO(data []byte) (*models.Package, error) {
	pkg := &models.Package{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "pkgname":
			pkg.Name = value
		case "pkgbase":
			pkg.Base = value
		case "pkgver":
			pkg.Version = value
		case "pkgdesc":
			pkg.Description = value
		case "url":
			pkg.Homepage = value
		case "license":
			pkg.Licenses = append(pkg.Licenses, value)
		case "arch":
			pkg.Architecture = value
		case "packager":
			pkg.Packager = value
		case "depend":
			pkg.Dependencies = append(pkg.Dependencies, value)
		case "conflict":
			pkg.Conflicts = append(pkg.Conflicts, value)
		case "provides":
			pkg.Provides = append(pkg.Provides, value)
		case "group":
			pkg.Groups = append(pkg.Groups, value)
		case "builddate":
			pkg.BuildDate = parseInt(key, value)
		case "size":
			pkg.InstalledSize = parseInt(key, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return pkg, nil
}

func parseInt(key, value string) int64 {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logrus.Debugf("Ignoring invalid %s %q: %v", key, value, err)
		return 0
	}
	return n
}
