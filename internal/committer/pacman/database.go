package pacman

import (
	"archive/tar"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/ralt/reposyncd/internal/models"
	"github.com/ralt/reposyncd/internal/scanner"
	"github.com/ralt/reposyncd/internal/utils"
)

// generateDatabase creates the uncompressed database tarball: one
// NAME-VERSION/desc entry per package, in name order
func generateDatabase(packages []models.Package) ([]byte, error) {
	packages = slices.Clone(packages)
	slices.SortFunc(packages, func(a, b models.Package) int {
		return strings.Compare(a.Name, b.Name)
	})

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)

	for _, pkg := range packages {
		descContent := generateDescFile(pkg)

		// Create directory entry
		dirName := fmt.Sprintf("%s-%s/", pkg.Name, pkg.Version)
		err := tw.WriteHeader(&tar.Header{
			Name:     dirName,
			Mode:     0755,
			Typeflag: tar.TypeDir,
		})
		if err != nil {
			return nil, err
		}

		err = tw.WriteHeader(&tar.Header{
			Name:     dirName + "desc",
			Mode:     0644,
			Size:     int64(len(descContent)),
			Typeflag: tar.TypeReg,
		})
		if err != nil {
			return nil, err
		}

		if _, err := tw.Write(descContent); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}

	return tarBuf.Bytes(), nil
}

// generateDescFile creates the desc file content for a package
func generateDescFile(pkg models.Package) []byte {
	var buf bytes.Buffer

	writeField := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&buf, "%%%s%%\n%s\n\n", name, value)
		}
	}
	writeList := func(name string, values []string) {
		if len(values) > 0 {
			fmt.Fprintf(&buf, "%%%s%%\n%s\n\n", name, strings.Join(values, "\n"))
		}
	}
	writeInt := func(name string, value int64) {
		if value > 0 {
			writeField(name, strconv.FormatInt(value, 10))
		}
	}

	writeField("FILENAME", pkg.Filename)
	writeField("NAME", pkg.Name)
	writeField("BASE", pkg.Base)
	writeField("VERSION", pkg.Version)
	writeField("DESC", pkg.Description)
	writeList("GROUPS", pkg.Groups)
	writeInt("CSIZE", pkg.Size)
	writeInt("ISIZE", pkg.InstalledSize)
	writeField("MD5SUM", pkg.MD5Sum)
	writeField("SHA256SUM", pkg.SHA256Sum)
	writeField("PGPSIG", pkg.PGPSig)
	writeField("URL", pkg.Homepage)
	writeList("LICENSE", pkg.Licenses)
	writeField("ARCH", pkg.Architecture)
	writeInt("BUILDDATE", pkg.BuildDate)
	writeField("PACKAGER", pkg.Packager)
	writeList("CONFLICTS", pkg.Conflicts)
	writeList("PROVIDES", pkg.Provides)
	writeList("DEPENDS", pkg.Dependencies)

	return buf.Bytes()
}

// readDatabase reads the desc entries of an existing database, whatever
// its compression
func readDatabase(dbPath string) ([]models.Package, error) {
	compression, err := scanner.DetectCompression(dbPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := utils.NewReader(f, compression)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var packages []models.Package

	tarReader := tar.NewReader(r)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		// Each package has a directory with desc file
		if header.Typeflag == tar.TypeReg && strings.HasSuffix(header.Name, "/desc") {
			descData, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, err
			}

			packages = append(packages, parseDescFile(descData))
		}
	}

	return packages, nil
}

// parseDescFile parses the %FIELD% sections of a desc file
func parseDescFile(data []byte) models.Package {
	var pkg models.Package

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var currentField string

	for scanner.Scan() {
		line := scanner.Text()

		// Field marker: %FIELDNAME%
		if len(line) > 1 && strings.HasPrefix(line, "%") && strings.HasSuffix(line, "%") {
			currentField = strings.Trim(line, "%")
			continue
		}

		if line == "" {
			currentField = ""
			continue
		}

		switch currentField {
		case "FILENAME":
			pkg.Filename = line
		case "NAME":
			pkg.Name = line
		case "BASE":
			pkg.Base = line
		case "VERSION":
			pkg.Version = line
		case "DESC":
			pkg.Description = line
		case "CSIZE":
			pkg.Size, _ = strconv.ParseInt(line, 10, 64)
		case "ISIZE":
			pkg.InstalledSize, _ = strconv.ParseInt(line, 10, 64)
		case "MD5SUM":
			pkg.MD5Sum = line
		case "SHA256SUM":
			pkg.SHA256Sum = line
		case "PGPSIG":
			pkg.PGPSig = line
		case "ARCH":
			pkg.Architecture = line
		case "PACKAGER":
			pkg.Packager = line
		case "URL":
			pkg.Homepage = line
		case "BUILDDATE":
			pkg.BuildDate, _ = strconv.ParseInt(line, 10, 64)
		case "LICENSE":
			pkg.Licenses = append(pkg.Licenses, line)
		case "DEPENDS":
			pkg.Dependencies = append(pkg.Dependencies, line)
		case "CONFLICTS":
			pkg.Conflicts = append(pkg.Conflicts, line)
		case "PROVIDES":
			pkg.Provides = append(pkg.Provides, line)
		case "GROUPS":
			pkg.Groups = append(pkg.Groups, line)
		}
	}

	return pkg
}
