package mediarepo

import (
	"database/sql"
	"os"
	"path"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/turt2live/dendrite-media-cleanup/common/rcontext"
	"github.com/turt2live/dendrite-media-cleanup/database"
)

const testSchema = `
CREATE TABLE mediaapi_media_repository (
	media_id TEXT NOT NULL,
	creation_ts INTEGER NOT NULL,
	base64hash TEXT NOT NULL,
	user_id TEXT NOT NULL DEFAULT ''
);
CREATE TABLE mediaapi_thumbnail (
	media_id TEXT NOT NULL
);
CREATE TABLE userapi_profiles (
	avatar_url TEXT NOT NULL DEFAULT ''
);
`

// newTestRepo builds a MediaRepository over an in-memory catalog and a
// throwaway storage root. The returned hook captures everything it logs.
func newTestRepo(t *testing.T) (*MediaRepository, *sql.DB, *test.Hook) {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	if _, err = conn.Exec(testSchema); err != nil {
		t.Fatal(err)
	}

	db, err := database.OpenWith(conn)
	if err != nil {
		t.Fatal(err)
	}

	logger, hook := test.NewNullLogger()
	ctx := rcontext.Initial().ReplaceLogger(logger.WithField("test", t.Name()))

	repo, err := New(ctx, t.TempDir(), db)
	if err != nil {
		t.Fatal(err)
	}
	return repo, conn, hook
}

func insertMedia(t *testing.T, conn *sql.DB, mediaId string, creationTs int64, base64hash string, userId string) {
	t.Helper()
	_, err := conn.Exec("INSERT INTO mediaapi_media_repository (media_id, creation_ts, base64hash, user_id) VALUES ($1, $2, $3, $4);", mediaId, creationTs, base64hash, userId)
	if err != nil {
		t.Fatal(err)
	}
}

func insertThumbnail(t *testing.T, conn *sql.DB, mediaId string) {
	t.Helper()
	if _, err := conn.Exec("INSERT INTO mediaapi_thumbnail (media_id) VALUES ($1);", mediaId); err != nil {
		t.Fatal(err)
	}
}

func insertProfile(t *testing.T, conn *sql.DB, avatarUrl string) {
	t.Helper()
	if _, err := conn.Exec("INSERT INTO userapi_profiles (avatar_url) VALUES ($1);", avatarUrl); err != nil {
		t.Fatal(err)
	}
}

func countMediaRows(t *testing.T, conn *sql.DB, mediaId string) int {
	t.Helper()
	return countRows(t, conn, "SELECT COUNT(media_id) FROM mediaapi_media_repository WHERE media_id = $1;", mediaId)
}

func countThumbnailRows(t *testing.T, conn *sql.DB, mediaId string) int {
	t.Helper()
	return countRows(t, conn, "SELECT COUNT(media_id) FROM mediaapi_thumbnail WHERE media_id = $1;", mediaId)
}

func countRows(t *testing.T, conn *sql.DB, query string, args ...interface{}) int {
	t.Helper()
	count := 0
	if err := conn.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatal(err)
	}
	return count
}

// makeMediaDir creates the 3-level media directory for a hash and fills it
// with the named files.
func makeMediaDir(t *testing.T, repo *MediaRepository, base64hash string, files ...string) string {
	t.Helper()
	dir := path.Join(repo.storageRoot, base64hash[0:1], base64hash[1:2], base64hash[2:])
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range files {
		if err := os.WriteFile(path.Join(dir, name), []byte("media bytes"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
