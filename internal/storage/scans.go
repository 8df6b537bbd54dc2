package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/hakim/scandash/internal/models"
	"go.etcd.io/bbolt"
)

// ErrExists is returned when a scan id is already stored. Records are
// append-only and never overwritten.
var ErrExists = errors.New("storage: scan already exists")

// SaveScan persists a scan record to the database
func (s *Store) SaveScan(scan *models.Scan) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		scans := tx.Bucket([]byte(bucketScans))
		if scans.Get([]byte(scan.ID)) != nil {
			return fmt.Errorf("%w: %s", ErrExists, scan.ID)
		}

		data, err := json.Marshal(scan)
		if err != nil {
			return err
		}
		if err := scans.Put([]byte(scan.ID), data); err != nil {
			return err
		}

		// Update scan index (target url -> []scan_id mapping)
		index := tx.Bucket([]byte(bucketScanIndex))
		targetKey := []byte(scan.URL)

		var scanIDs []string
		if existing := index.Get(targetKey); existing != nil {
			if err := json.Unmarshal(existing, &scanIDs); err != nil {
				return err
			}
		}
		scanIDs = append(scanIDs, scan.ID)

		indexData, err := json.Marshal(scanIDs)
		if err != nil {
			return err
		}
		return index.Put(targetKey, indexData)
	})
}

// LoadScans retrieves every stored scan, sorted by Timestamp descending
func (s *Store) LoadScans() ([]models.Scan, error) {
	var scans []models.Scan

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketScans)).ForEach(func(_, v []byte) error {
			var scan models.Scan
			if err := json.Unmarshal(v, &scan); err != nil {
				return err
			}
			scans = append(scans, scan)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(scans)
	return scans, nil
}

// ListScans retrieves all scans recorded for a target url, newest first
func (s *Store) ListScans(target string) ([]models.Scan, error) {
	var scans []models.Scan

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketScanIndex)).Get([]byte(target))
		if data == nil {
			return nil
		}

		var scanIDs []string
		if err := json.Unmarshal(data, &scanIDs); err != nil {
			return err
		}

		bucket := tx.Bucket([]byte(bucketScans))
		for _, id := range scanIDs {
			raw := bucket.Get([]byte(id))
			if raw == nil {
				continue
			}
			var scan models.Scan
			if err := json.Unmarshal(raw, &scan); err != nil {
				return err
			}
			scans = append(scans, scan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(scans)
	return scans, nil
}

func sortNewestFirst(scans []models.Scan) {
	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].Timestamp.After(scans[j].Timestamp)
	})
}
