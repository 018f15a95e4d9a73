package settings

import (
	"fmt"
	"strconv"

	bolt "go.etcd.io/bbolt"

	"zapretd/internal/domain"
)

// Layout: zapretd/meta holds the schema version, zapretd/state one JSON value per section.
const (
	schemaVersion = 1

	rootBucketName  = "zapretd"
	metaBucketName  = "meta"
	stateBucketName = "state"
	versionKey      = "schema_version"
)

func ensureSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(rootBucketName))
		if err != nil {
			return fmt.Errorf("create %s bucket: %w", rootBucketName, err)
		}
		for _, name := range []string{metaBucketName, stateBucketName} {
			if _, err := root.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}

		meta := root.Bucket([]byte(metaBucketName))
		version, _ := strconv.Atoi(string(meta.Get([]byte(versionKey))))
		if version > schemaVersion {
			return domain.E(domain.CodeFailedPrecond, "settings.open",
				fmt.Sprintf("settings written by a newer release (schema %d)", version), nil)
		}
		if version == schemaVersion {
			return nil
		}
		return meta.Put([]byte(versionKey), []byte(strconv.Itoa(schemaVersion)))
	})
}

func stateBucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	root := tx.Bucket([]byte(rootBucketName))
	if root == nil {
		return nil, fmt.Errorf("settings: missing %s bucket", rootBucketName)
	}
	state := root.Bucket([]byte(stateBucketName))
	if state == nil {
		return nil, fmt.Errorf("settings: missing %s bucket", stateBucketName)
	}
	return state, nil
}
