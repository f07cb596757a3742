package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/models"
)

const (
	caPassphrasePrefix = "runtime/ca_passphrase/"
	caKeyPrefix        = "runtime/ca_key/"
	caAuthoritiesKey   = "runtime/certificates/authorities"
	thingPrefix        = "runtime/things/"
	certPrefix         = "runtime/certs/"
)

type BadgerRuntimeRepo struct {
	db     *badger.DB
	logger *logrus.Entry
}

// NewBadgerRuntimeRepo opens the runtime store at the given directory. An
// empty directory selects badger's in-memory mode (used by tests).
func NewBadgerRuntimeRepo(logger *logrus.Entry, directory string) (RuntimeRepo, error) {
	var opts badger.Options
	if directory == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(directory)
	}

	opts = opts.WithLogger(newBadgerLoggerAdapter(logger.WithField("subsystem-provider", "Badger")))

	db, err := badger.Open(opts)
	if err != nil {
		logger.Errorf("could not open runtime store: %s", err)
		return nil, err
	}

	return &BadgerRuntimeRepo{
		db:     db,
		logger: logger,
	}, nil
}

func (repo *BadgerRuntimeRepo) Close() error {
	return repo.db.Close()
}

func (repo *BadgerRuntimeRepo) GetCAPassphrase(ctx context.Context, caType models.CAType) (string, error) {
	raw, err := repo.get(caPassphrasePrefix + string(caType))
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

func (repo *BadgerRuntimeRepo) UpdateCAPassphrase(ctx context.Context, caType models.CAType, passphrase string) error {
	return repo.set(caPassphrasePrefix+string(caType), []byte(passphrase))
}

func (repo *BadgerRuntimeRepo) GetCABundle(ctx context.Context, caType models.CAType) (*CABundle, error) {
	raw, err := repo.get(caKeyPrefix + string(caType))
	if err != nil || raw == nil {
		return nil, err
	}

	var bundle CABundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("corrupted CA bundle record: %w", err)
	}

	return &bundle, nil
}

func (repo *BadgerRuntimeRepo) UpdateCABundle(ctx context.Context, caType models.CAType, bundle CABundle) error {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return err
	}

	return repo.set(caKeyPrefix+string(caType), raw)
}

func (repo *BadgerRuntimeRepo) GetCACertificates(ctx context.Context) ([]string, error) {
	raw, err := repo.get(caAuthoritiesKey)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		return []string{}, nil
	}

	var pemCerts []string
	if err := json.Unmarshal(raw, &pemCerts); err != nil {
		return nil, fmt.Errorf("corrupted authorities record: %w", err)
	}

	return pemCerts, nil
}

func (repo *BadgerRuntimeRepo) UpdateCACertificates(ctx context.Context, pemCerts []string) error {
	raw, err := json.Marshal(pemCerts)
	if err != nil {
		return err
	}

	return repo.set(caAuthoritiesKey, raw)
}

func (repo *BadgerRuntimeRepo) GetThing(ctx context.Context, thingName string) (*ThingRecord, error) {
	raw, err := repo.get(thingPrefix + thingName)
	if err != nil || raw == nil {
		return nil, err
	}

	var thing ThingRecord
	if err := json.Unmarshal(raw, &thing); err != nil {
		return nil, fmt.Errorf("corrupted thing record: %w", err)
	}

	return &thing, nil
}

func (repo *BadgerRuntimeRepo) PutThing(ctx context.Context, thing ThingRecord) error {
	raw, err := json.Marshal(thing)
	if err != nil {
		return err
	}

	return repo.set(thingPrefix+thing.ThingName, raw)
}

func (repo *BadgerRuntimeRepo) RemoveThing(ctx context.Context, thingName string) error {
	return repo.delete(thingPrefix + thingName)
}

func (repo *BadgerRuntimeRepo) ForEachThing(ctx context.Context, apply func(thing ThingRecord) error) error {
	return repo.iterate(thingPrefix, func(raw []byte) error {
		var thing ThingRecord
		if err := json.Unmarshal(raw, &thing); err != nil {
			return fmt.Errorf("corrupted thing record: %w", err)
		}

		return apply(thing)
	})
}

func (repo *BadgerRuntimeRepo) GetCertificate(ctx context.Context, certificateID string) (*CertificateRecord, error) {
	raw, err := repo.get(certPrefix + certificateID)
	if err != nil || raw == nil {
		return nil, err
	}

	var cert CertificateRecord
	if err := json.Unmarshal(raw, &cert); err != nil {
		return nil, fmt.Errorf("corrupted certificate record: %w", err)
	}

	return &cert, nil
}

func (repo *BadgerRuntimeRepo) PutCertificate(ctx context.Context, cert CertificateRecord) error {
	raw, err := json.Marshal(cert)
	if err != nil {
		return err
	}

	return repo.set(certPrefix+cert.CertificateID, raw)
}

func (repo *BadgerRuntimeRepo) RemoveCertificate(ctx context.Context, certificateID string) error {
	return repo.delete(certPrefix + certificateID)
}

func (repo *BadgerRuntimeRepo) ForEachCertificate(ctx context.Context, apply func(cert CertificateRecord) error) error {
	return repo.iterate(certPrefix, func(raw []byte) error {
		var cert CertificateRecord
		if err := json.Unmarshal(raw, &cert); err != nil {
			return fmt.Errorf("corrupted certificate record: %w", err)
		}

		return apply(cert)
	})
}

// get returns (nil, nil) for missing keys. Absence is a regular state for
// most runtime records.
func (repo *BadgerRuntimeRepo) get(key string) ([]byte, error) {
	var value []byte
	err := repo.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}

	return value, err
}

func (repo *BadgerRuntimeRepo) set(key string, value []byte) error {
	return repo.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (repo *BadgerRuntimeRepo) delete(key string) error {
	return repo.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (repo *BadgerRuntimeRepo) iterate(prefix string, apply func(raw []byte) error) error {
	return repo.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		pfx := []byte(prefix)
		for it.Seek(pfx); it.ValidForPrefix(pfx); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			if err := apply(raw); err != nil {
				return err
			}
		}

		return nil
	})
}

type badgerLoggerAdapter struct {
	entry *logrus.Entry
}

func newBadgerLoggerAdapter(l *logrus.Entry) badger.Logger {
	return &badgerLoggerAdapter{entry: l}
}

func (l *badgerLoggerAdapter) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(strings.TrimSpace(format), args...)
}

func (l *badgerLoggerAdapter) Warningf(format string, args ...interface{}) {
	l.entry.Warnf(strings.TrimSpace(format), args...)
}

func (l *badgerLoggerAdapter) Infof(format string, args ...interface{}) {
	l.entry.Debugf(strings.TrimSpace(format), args...)
}

func (l *badgerLoggerAdapter) Debugf(format string, args ...interface{}) {
	l.entry.Tracef(strings.TrimSpace(format), args...)
}
