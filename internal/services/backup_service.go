package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrSourceNotFound = errors.New("database file not found")

const backupStampLayout = "20060102-150405"

var backupNamePattern = regexp.MustCompile(`^backup-(\d{8}-\d{6})-(\d{4,})\.db$`)

// RetentionPolicy selects backups to delete. A zero MaxAge or MaxCount
// disables that half of the policy.
type RetentionPolicy struct {
	MaxAge   time.Duration
	MaxCount int
}

func KeepFor(age time.Duration) RetentionPolicy {
	return RetentionPolicy{MaxAge: age}
}

func KeepLast(count int) RetentionPolicy {
	return RetentionPolicy{MaxCount: count}
}

func (p RetentionPolicy) String() string {
	switch {
	case p.MaxAge > 0 && p.MaxCount > 0:
		return fmt.Sprintf("keep last %d within %s", p.MaxCount, p.MaxAge)
	case p.MaxAge > 0:
		return fmt.Sprintf("keep for %s", p.MaxAge)
	case p.MaxCount > 0:
		return fmt.Sprintf("keep last %d", p.MaxCount)
	default:
		return "keep all"
	}
}

// BackupMirror receives a copy of every new backup, e.g. an object store.
type BackupMirror interface {
	Upload(ctx context.Context, name string, body io.Reader, size int64) error
}

type BackupServiceConfig struct {
	SourcePath string
	BackupDir  string
}

type CleanupReport struct {
	Deleted []string
	Err     error
}

type BackupResult struct {
	Backup   model.Backup
	Mirrored bool
	Cleanup  CleanupReport
}

type BackupService struct {
	config    BackupServiceConfig
	fs        afero.Fs
	mirror    BackupMirror
	now       func() time.Time
	mutex     sync.Mutex
	lastStamp string
	sequence  int
}

func NewBackupService(config BackupServiceConfig, filesystem afero.Fs, mirror BackupMirror) *BackupService {
	return &BackupService{
		config: config,
		fs:     filesystem,
		mirror: mirror,
		now:    time.Now,
	}
}

func (bs *BackupService) WithClock(now func() time.Time) *BackupService {
	bs.now = now
	return bs
}

func (bs *BackupService) nextName() (string, time.Time) {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	now := bs.now().UTC()
	stamp := now.Format(backupStampLayout)

	if stamp == bs.lastStamp {
		bs.sequence++
	} else {
		bs.lastStamp = stamp
		bs.sequence = 1
	}

	return fmt.Sprintf("backup-%s-%04d.db", stamp, bs.sequence), now
}

// CreateBackup copies the database file into the backup directory, mirrors
// it when a mirror is configured and then applies policy. Mirror and cleanup
// failures are logged, only a failed copy fails the call.
func (bs *BackupService) CreateBackup(ctx context.Context, policy RetentionPolicy) (BackupResult, error) {
	source, err := bs.fs.Open(bs.config.SourcePath)

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return BackupResult{}, fmt.Errorf("%w: expected sqlite database at %s", ErrSourceNotFound, bs.config.SourcePath)
		}
		return BackupResult{}, fmt.Errorf("failed to open database: %w", err)
	}

	defer source.Close()

	if err := bs.fs.MkdirAll(bs.config.BackupDir, 0o750); err != nil {
		return BackupResult{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	var (
		name      string
		createdAt time.Time
		target    afero.File
	)

	for {
		name, createdAt = bs.nextName()
		target, err = bs.fs.OpenFile(filepath.Join(bs.config.BackupDir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)

		if errors.Is(err, fs.ErrExist) {
			continue
		}

		break
	}

	if err != nil {
		return BackupResult{}, fmt.Errorf("failed to create backup file: %w", err)
	}

	targetPath := filepath.Join(bs.config.BackupDir, name)
	size, err := io.Copy(target, source)

	if err == nil {
		err = target.Sync()
	}

	if closeErr := target.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		if removeErr := bs.fs.Remove(targetPath); removeErr != nil {
			log.Error().Err(removeErr).Str("backup", name).Msg("failed to remove partial backup")
		}
		return BackupResult{}, fmt.Errorf("failed to copy database: %w", err)
	}

	log.Info().Str("backup", name).Int64("size", size).Msg("backup created")

	result := BackupResult{
		Backup: model.Backup{
			Name:          name,
			Size:          size,
			SizeFormatted: humanize.IBytes(uint64(size)),
			CreatedAt:     createdAt,
		},
	}

	if bs.mirror != nil {
		result.Mirrored = bs.mirrorBackup(ctx, targetPath, name, size)
	}

	result.Cleanup = bs.Cleanup(policy)

	if result.Cleanup.Err != nil {
		log.Error().Err(result.Cleanup.Err).Str("policy", policy.String()).Msg("backup cleanup failed")
	}

	return result, nil
}

func (bs *BackupService) mirrorBackup(ctx context.Context, path string, name string, size int64) bool {
	file, err := bs.fs.Open(path)

	if err != nil {
		log.Error().Err(err).Str("backup", name).Msg("failed to open backup for mirroring")
		return false
	}

	defer file.Close()

	if err := bs.mirror.Upload(ctx, name, file, size); err != nil {
		log.Error().Err(err).Str("backup", name).Msg("failed to mirror backup")
		return false
	}

	return true
}

// ListBackups returns backups newest first. A missing directory is an empty
// inventory.
func (bs *BackupService) ListBackups() ([]model.Backup, error) {
	entries, err := afero.ReadDir(bs.fs, bs.config.BackupDir)

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Backup{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	type listedBackup struct {
		backup   model.Backup
		sequence int
	}

	listed := make([]listedBackup, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		match := backupNamePattern.FindStringSubmatch(entry.Name())

		if match == nil {
			continue
		}

		createdAt, err := time.ParseInLocation(backupStampLayout, match[1], time.UTC)

		if err != nil {
			createdAt = entry.ModTime().UTC()
		}

		// The suffix grows past four digits, so names do not sort lexically.
		sequence, _ := strconv.Atoi(match[2])

		listed = append(listed, listedBackup{
			backup: model.Backup{
				Name:          entry.Name(),
				Size:          entry.Size(),
				SizeFormatted: humanize.IBytes(uint64(entry.Size())),
				CreatedAt:     createdAt,
			},
			sequence: sequence,
		})
	}

	sort.Slice(listed, func(i, j int) bool {
		if !listed[i].backup.CreatedAt.Equal(listed[j].backup.CreatedAt) {
			return listed[i].backup.CreatedAt.After(listed[j].backup.CreatedAt)
		}
		if listed[i].sequence != listed[j].sequence {
			return listed[i].sequence > listed[j].sequence
		}
		return listed[i].backup.Name > listed[j].backup.Name
	})

	backups := make([]model.Backup, 0, len(listed))

	for _, item := range listed {
		backups = append(backups, item.backup)
	}

	return backups, nil
}

// Cleanup deletes backups outside policy. Deletion is best effort, every
// failure is collected into the report.
func (bs *BackupService) Cleanup(policy RetentionPolicy) CleanupReport {
	backups, err := bs.ListBackups()

	if err != nil {
		return CleanupReport{Err: err}
	}

	now := bs.now().UTC()
	var report CleanupReport
	var errs *multierror.Error

	for i, backup := range backups {
		expired := policy.MaxAge > 0 && now.Sub(backup.CreatedAt) > policy.MaxAge
		overflow := policy.MaxCount > 0 && i >= policy.MaxCount

		if !expired && !overflow {
			continue
		}

		if err := bs.fs.Remove(filepath.Join(bs.config.BackupDir, backup.Name)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to delete %s: %w", backup.Name, err))
			continue
		}

		log.Info().Str("backup", backup.Name).Str("policy", policy.String()).Msg("deleted old backup")
		report.Deleted = append(report.Deleted, backup.Name)
	}

	report.Err = errs.ErrorOrNil()
	return report
}

func TotalBackupSize(backups []model.Backup) int64 {
	var total int64
	for _, backup := range backups {
		total += backup.Size
	}
	return total
}
