// Command hostd-migrate rewrites a datastore file created by a legacy
// agent release into the current host-status schema, in place, so a
// host upgraded alongside a breaking schema change can still be
// serviced. The rewrite is grounded in the legacy schema's own
// documented compatibility shims: image references, netplan
// configuration, and verity filesystems all moved to new document
// shapes at different points, and a host imaged with an old agent only
// carries the old shape.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	bolt "go.etcd.io/bbolt"
)

var (
	datastorePath = flag.String("datastore", "", "Path to the hostd datastore file (required)")
	dryRun        = flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	backupPath    = flag.String("backup", "", "Path to back up the database before migration (default: <datastore>.backup)")
)

var (
	bucketCurrent = []byte("current")
	bucketHistory = []byte("history")
	currentKey    = []byte("status")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("hostd datastore migration tool - legacy host status rewrite")
	log.Println("=============================================================")

	if *datastorePath == "" {
		log.Fatal("--datastore is required")
	}
	if _, err := os.Stat(*datastorePath); os.IsNotExist(err) {
		log.Fatalf("datastore not found at %s", *datastorePath)
	}

	log.Printf("Datastore: %s", *datastorePath)
	log.Printf("Dry run: %v", *dryRun)

	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = *datastorePath + ".backup"
		}
		log.Printf("Creating backup: %s", backupFile)
		if err := copyFile(*datastorePath, backupFile); err != nil {
			log.Fatalf("failed to create backup: %v", err)
		}
		log.Println("backup created successfully")
	}

	db, err := bolt.Open(*datastorePath, 0o600, nil)
	if err != nil {
		log.Fatalf("failed to open datastore: %v", err)
	}
	defer db.Close()

	if err := migrateDatastore(db, *dryRun); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	if *dryRun {
		log.Println()
		log.Println("dry run completed, no changes made")
		log.Println("run without --dry-run to perform the migration")
	} else {
		log.Println()
		log.Println("migration completed successfully")
		log.Println("the pre-migration database was preserved at the --backup path for rollback")
	}
}

// migrateDatastore rewrites every record in bucketCurrent and
// bucketHistory that is still in the legacy shape. Records already on
// the current schema (no legacy osImage/network/verityFilesystems keys)
// are left untouched, so this is safe to run more than once.
func migrateDatastore(db *bolt.DB, dryRun bool) error {
	type pending struct {
		bucket []byte
		key    []byte
		record map[string]interface{}
	}

	var toMigrate []pending
	var total, legacy int

	err := db.View(func(tx *bolt.Tx) error {
		for _, bucketName := range [][]byte{bucketCurrent, bucketHistory} {
			bucket := tx.Bucket(bucketName)
			if bucket == nil {
				continue
			}
			err := bucket.ForEach(func(k, v []byte) error {
				total++
				var record map[string]interface{}
				if err := json.Unmarshal(v, &record); err != nil {
					log.Printf("warning: skipping undecodable record %s/%s: %v", bucketName, k, err)
					return nil
				}
				if !isLegacyHostStatus(record) {
					return nil
				}
				legacy++
				keyCopy := append([]byte(nil), k...)
				toMigrate = append(toMigrate, pending{bucket: bucketName, key: keyCopy, record: record})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("found %d records, %d on the legacy schema", total, legacy)
	if legacy == 0 {
		log.Println("datastore is already on the current schema")
		return nil
	}

	if dryRun {
		log.Println()
		log.Println("[dry run] would rewrite the following records:")
		for _, p := range toMigrate {
			log.Printf("  %s/%s", p.bucket, p.key)
		}
		return nil
	}

	return db.Update(func(tx *bolt.Tx) error {
		for _, p := range toMigrate {
			rewritten, err := rewriteLegacyHostStatus(p.record)
			if err != nil {
				return fmt.Errorf("rewriting %s/%s: %w", p.bucket, p.key, err)
			}
			data, err := json.Marshal(rewritten)
			if err != nil {
				return fmt.Errorf("encoding %s/%s: %w", p.bucket, p.key, err)
			}
			if err := tx.Bucket(p.bucket).Put(p.key, data); err != nil {
				return fmt.Errorf("writing %s/%s: %w", p.bucket, p.key, err)
			}
			log.Printf("migrated %s/%s", p.bucket, p.key)
		}
		return nil
	})
}

// isLegacyHostStatus reports whether record's spec still carries any of
// the pre-migration keys: a legacy osImage reference, an os.network
// block, or standalone verityFilesystems entries.
func isLegacyHostStatus(record map[string]interface{}) bool {
	spec, ok := record["spec"].(map[string]interface{})
	if !ok {
		return false
	}
	if _, ok := spec["osImage"]; ok {
		return true
	}
	if os, ok := spec["os"].(map[string]interface{}); ok {
		if _, ok := os["network"]; ok {
			return true
		}
	}
	if storage, ok := spec["storage"].(map[string]interface{}); ok {
		if _, ok := storage["verityFilesystems"]; ok {
			return true
		}
	}
	return false
}

// rewriteLegacyHostStatus applies the legacy-to-current schema rewrite to
// one host status record's "spec" document:
//
//   - spec.osImage (type, sha384, url) -> spec.image (url only; the old
//     sha384 digest is dropped, it was never verified against the COSI
//     manifest in the legacy agent either)
//   - spec.os.network -> renamed to spec.os.netplan
//   - spec.storage.filesystems[].source: a filesystem whose source.type is
//     "create" or "new" has no on-disk data to carry forward and cannot be
//     converted; migration refuses rather than silently dropping it
//   - spec.storage.filesystems[].source is flattened from {type, id} to a
//     plain device-id string
//   - spec.storage.verityFilesystems[] is split into spec.storage.verity[]
//     (name, a synthesized id, dataDeviceId, hashDeviceId) plus one
//     corresponding spec.storage.filesystems[] entry per verity device
//     (deviceId=id, mountPoint)
func rewriteLegacyHostStatus(record map[string]interface{}) (map[string]interface{}, error) {
	spec, _ := record["spec"].(map[string]interface{})
	if spec == nil {
		return record, nil
	}

	if osImage, ok := spec["osImage"].(map[string]interface{}); ok {
		url, _ := osImage["url"].(string)
		spec["image"] = map[string]interface{}{"url": url}
		delete(spec, "osImage")
	}

	if os, ok := spec["os"].(map[string]interface{}); ok {
		if network, ok := os["network"]; ok {
			os["netplan"] = network
			delete(os, "network")
		}
	}

	storage, _ := spec["storage"].(map[string]interface{})
	if storage == nil {
		return record, nil
	}

	filesystems, _ := storage["filesystems"].([]interface{})
	for i, fsRaw := range filesystems {
		fs, ok := fsRaw.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := fs["source"].(map[string]interface{})
		if !ok {
			continue
		}
		if sourceType, _ := source["type"].(string); sourceType == "create" || sourceType == "new" {
			return nil, fmt.Errorf("filesystem entry %d has source.type %q, no on-disk data to migrate", i, sourceType)
		}
		deviceID, _ := source["id"].(string)
		fs["source"] = deviceID
	}
	storage["filesystems"] = filesystems

	verityFilesystems, _ := storage["verityFilesystems"].([]interface{})
	if len(verityFilesystems) == 0 {
		delete(storage, "verityFilesystems")
		return record, nil
	}

	verity := make([]interface{}, 0, len(verityFilesystems))
	for i, vfsRaw := range verityFilesystems {
		vfs, ok := vfsRaw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("verityFilesystems entry %d is not an object", i)
		}
		name, _ := vfs["name"].(string)
		dataDeviceID, _ := vfs["dataDeviceId"].(string)
		hashDeviceID, _ := vfs["hashDeviceId"].(string)
		mountPoint, _ := vfs["mountPoint"].(string)
		if name == "" || dataDeviceID == "" || hashDeviceID == "" || mountPoint == "" {
			return nil, fmt.Errorf("verityFilesystems entry %d is missing a required field", i)
		}

		id := fmt.Sprintf("verity%d", i)
		verity = append(verity, map[string]interface{}{
			"id":           id,
			"name":         name,
			"dataDeviceId": dataDeviceID,
			"hashDeviceId": hashDeviceID,
		})
		filesystems = append(filesystems, map[string]interface{}{
			"deviceId":   id,
			"mountPoint": mountPoint,
		})
	}
	storage["verity"] = verity
	storage["filesystems"] = filesystems
	delete(storage, "verityFilesystems")

	return record, nil
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0o600)
}
