package store

import sq "github.com/Masterminds/squirrel"

const (
	insertBlob = `INSERT INTO blobs (hash, payload, source_instance, created_at)
		VALUES (?, ?, ?, ?);`

	selectBlobByHash = `SELECT id, hash, payload, source_instance, created_at
		FROM blobs
		WHERE hash = ?;`

	selectBlobIDByHash = `SELECT id FROM blobs WHERE hash = ?;`

	selectMaxBlobID = `SELECT COALESCE(MAX(id), 0) FROM blobs;`

	selectInstance = `SELECT creator_id, instance_id, remote_pos, registered_at
		FROM instances
		WHERE creator_id = ? AND instance_id = ?;`

	insertInstance = `INSERT INTO instances (creator_id, instance_id, remote_pos, registered_at)
		VALUES (?, ?, 0, ?);`

	updateInstancePosition = `UPDATE instances
		SET remote_pos = ?
		WHERE creator_id = ? AND instance_id = ?;`

	selectSetting = `SELECT value FROM settings WHERE key = ?;`

	upsertSetting = `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value;`
)

// pushableSinceQuery builds the filtered listing of blobs appended after pos
// that did not originate from instanceID.
func pushableSinceQuery(pos int64, instanceID string) (string, []any, error) {
	return sq.Select("id", "hash").
		From("blobs").
		Where(sq.Gt{"id": pos}).
		Where(sq.NotEq{"source_instance": instanceID}).
		OrderBy("id ASC").
		ToSql()
}
