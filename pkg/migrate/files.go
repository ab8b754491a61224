package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

// AllowDestructive opts a migration out of the money-table guard.
const AllowDestructive = "-- +inkledger allow-destructive"

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	slugRe     = regexp.MustCompile(`[^a-z0-9_]+`)

	// Tables holding money or wallet history. Their Up sections may not
	// drop or truncate them, nor drop the balance floor.
	guardedTables = []string{"members", "bills", "payments", "payment_allocations", "wallet_ledger_entries"}
	floorName     = "ck_members_balance_non_negative"
)

// File is one goose SQL migration on disk.
type File struct {
	Version int64
	Slug    string
	Path    string
}

// ScanDir lists the SQL migrations in dir ordered by version.
func ScanDir(dir string) ([]File, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := fileNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		files = append(files, File{Version: version, Slug: m[2], Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// ValidateDir checks filenames, goose annotations and the money-table guard.
func ValidateDir(dir string) error {
	files, err := ScanDir(dir)
	if err != nil {
		return err
	}
	for i, f := range files {
		if i > 0 && files[i-1].Version == f.Version {
			return fmt.Errorf("duplicate migration version %d in %q and %q", f.Version, filepath.Base(files[i-1].Path), filepath.Base(f.Path))
		}
		b, err := os.ReadFile(f.Path)
		if err != nil {
			return fmt.Errorf("read file %q: %w", f.Path, err)
		}
		if err := checkContent(filepath.Base(f.Path), string(b)); err != nil {
			return err
		}
	}
	return nil
}

func checkContent(name, txt string) error {
	upAt := strings.Index(txt, "-- +goose Up")
	downAt := strings.Index(txt, "-- +goose Down")
	if upAt < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	}
	if downAt < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	}
	if downAt < upAt || strings.Contains(txt, AllowDestructive) {
		return nil
	}

	up := strings.ToLower(txt[upAt:downAt])
	for _, table := range guardedTables {
		for _, stmt := range []string{"drop table " + table, "drop table if exists " + table, "truncate " + table, "truncate table " + table} {
			if containsStatement(up, stmt) {
				return fmt.Errorf("migration %q: %q in Up section needs %q", name, stmt, AllowDestructive)
			}
		}
	}
	if strings.Contains(up, "drop constraint "+floorName) || strings.Contains(up, "drop constraint if exists "+floorName) {
		return fmt.Errorf("migration %q drops the wallet balance floor", name)
	}
	return nil
}

// containsStatement matches stmt only when the table name is not a prefix
// of a longer identifier.
func containsStatement(sql, stmt string) bool {
	for idx := strings.Index(sql, stmt); idx >= 0; {
		end := idx + len(stmt)
		if end == len(sql) || !isIdentChar(sql[end]) {
			return true
		}
		next := strings.Index(sql[end:], stmt)
		if next < 0 {
			return false
		}
		idx = end + next
	}
	return false
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// CreateSQLMigration writes an empty goose migration named after name.
// The version is the current UTC second, bumped past the newest file in dir.
func CreateSQLMigration(dir, name string) (string, error) {
	return createAt(dir, name, time.Now().UTC())
}

func createAt(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := slugRe.ReplaceAllString(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_"), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	existing, err := ScanDir(dir)
	if err != nil {
		return "", err
	}
	version := now
	if n := len(existing); n > 0 {
		latest, err := time.Parse(versionLayout, strconv.FormatInt(existing[n-1].Version, 10))
		if err == nil && !version.After(latest) {
			version = latest.Add(time.Second)
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version.Format(versionLayout), slug))
	body := fmt.Sprintf("-- +goose Up\n-- +goose StatementBegin\n-- %[1]s\n-- +goose StatementEnd\n\n-- +goose Down\n-- +goose StatementBegin\n-- rollback %[1]s\n-- +goose StatementEnd\n", slug)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}
