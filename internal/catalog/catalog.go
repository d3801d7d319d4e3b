// Package catalog stores scene arrays and sampling run records in SQLite.
// A Catalog is a scene.Source, so a split can be loaded straight from the
// database instead of a directory of .npy files.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"

	"github.com/KeyueZhu/XenomatiX/internal/scene"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrSceneNotFound is returned when a named scene is not in the catalog.
var ErrSceneNotFound = errors.New("scene not in catalog")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Catalog is a SQLite-backed scene and run store.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog at path and migrates it to the latest
// schema version.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	c := &Catalog{db: db}
	if err := c.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	diagf("opened catalog %s", path)
	return c, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateUp applies pending migrations. The migrate instance is not closed
// because that would close the shared database handle.
func (c *Catalog) migrateUp() error {
	m, err := c.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (c *Catalog) SchemaVersion() (uint, bool, error) {
	m, err := c.newMigrate()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// migrateLogger implements migrate.Logger on the catalog diag stream.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	diagf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// InsertScene stores rows under name, replacing any scene of the same name,
// and returns the scene id. The id of an existing scene is kept.
func (c *Catalog) InsertScene(ctx context.Context, name string, rows *mat.Dense) (string, error) {
	r, cols := rows.Dims()
	if cols < scene.MinColumns {
		return "", fmt.Errorf("insert %s: %w: %d columns", name, scene.ErrBadShape, cols)
	}
	now := time.Now().UnixNano()
	var id string
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO scenes (scene_id, name, num_points, num_columns, points, created_unix_nanos, updated_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			num_points = excluded.num_points,
			num_columns = excluded.num_columns,
			points = excluded.points,
			updated_unix_nanos = excluded.updated_unix_nanos
		RETURNING scene_id
	`, uuid.New().String(), name, r, cols, encodeRows(rows), now, now).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert scene %s: %w", name, err)
	}
	tracef("stored %s (%s): %d x %d", name, id, r, cols)
	return id, nil
}

// SceneNames lists stored scenes by name.
func (c *Catalog) SceneNames(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name FROM scenes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan scene name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ReadScene returns the stored array for name.
func (c *Catalog) ReadScene(ctx context.Context, name string) (*mat.Dense, error) {
	var (
		r, cols int
		blob    []byte
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT num_points, num_columns, points FROM scenes WHERE name = ?`, name,
	).Scan(&r, &cols, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", name, err)
	}
	return decodeRows(blob, r, cols)
}

// Import copies every scene of src accepted by keep into the catalog and
// returns the number imported. A nil keep imports everything.
func (c *Catalog) Import(ctx context.Context, src scene.Source, keep scene.Partition) (int, error) {
	if keep == nil {
		keep = scene.All()
	}
	names, err := src.SceneNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("list source scenes: %w", err)
	}
	n := 0
	for _, name := range names {
		if !keep(name) {
			continue
		}
		rows, err := src.ReadScene(ctx, name)
		if err != nil {
			return n, fmt.Errorf("import %s: %w", name, err)
		}
		if _, err := c.InsertScene(ctx, name, rows); err != nil {
			return n, err
		}
		n++
	}
	diagf("imported %d of %d scenes", n, len(names))
	return n, nil
}

// encodeRows packs a matrix row-major as little-endian float64s.
func encodeRows(m *mat.Dense) []byte {
	r, c := m.Dims()
	blob := make([]byte, r*c*8)
	off := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			binary.LittleEndian.PutUint64(blob[off:], math.Float64bits(m.At(i, j)))
			off += 8
		}
	}
	return blob
}

func decodeRows(blob []byte, r, c int) (*mat.Dense, error) {
	if r <= 0 || c <= 0 {
		return nil, scene.ErrEmptyScene
	}
	if len(blob) != r*c*8 {
		return nil, fmt.Errorf("points blob is %d bytes, want %d for %dx%d", len(blob), r*c*8, r, c)
	}
	data := make([]float64, r*c)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return mat.NewDense(r, c, data), nil
}
