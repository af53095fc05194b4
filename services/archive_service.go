package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"smartbull_go/config"
	"smartbull_go/database"
	"smartbull_go/models"
)

// ArchiveService flushes Redis-cached activity logs to the database and
// snapshots closed school years (locked grades and their bulletins) into a
// ZIP bundle uploaded to S3.
type ArchiveService struct {
	redisClient *redis.Client
	awsConfig   aws.Config
}

func NewArchiveService() *ArchiveService {
	cfg, err := awscfg.LoadDefaultConfig(context.Background(), awscfg.WithRegion(config.AppConfig.AWSRegion))
	if err != nil {
		logrus.WithError(err).Warn("Failed to load AWS config; S3 archive uploads will fail until configured")
	}
	return &ArchiveService{
		redisClient: database.GetRedisClient(),
		awsConfig:   cfg,
	}
}

// FlushCachedLogsToDatabase drains expired entries of the logs:queue sorted
// set into the activity_logs table.
func (as *ArchiveService) FlushCachedLogsToDatabase() error {
	if as.redisClient == nil {
		return fmt.Errorf("redis client not available")
	}

	ctx := context.Background()
	cutoffTime := time.Now().Add(-24 * time.Hour)

	expiredLogs, err := as.redisClient.ZRangeByScore(ctx, "logs:queue", &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", cutoffTime.Unix()),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get expired logs: %v", err)
	}

	var processed, failed int
	for _, logKey := range expiredLogs {
		logData, err := as.redisClient.Get(ctx, logKey).Result()
		if err != nil {
			if err != redis.Nil {
				logrus.WithError(err).Errorf("Failed to get cached log %s", logKey)
				failed++
			}
			continue
		}

		var activityLog models.ActivityLog
		if err := json.Unmarshal([]byte(logData), &activityLog); err != nil {
			logrus.WithError(err).Errorf("Failed to unmarshal cached log %s", logKey)
			failed++
			continue
		}

		if err := database.DB.Create(&activityLog).Error; err != nil {
			logrus.WithError(err).Error("Failed to persist cached log")
			failed++
			continue
		}

		pipeline := as.redisClient.Pipeline()
		pipeline.Del(ctx, logKey)
		pipeline.ZRem(ctx, "logs:queue", logKey)
		if _, err = pipeline.Exec(ctx); err != nil {
			logrus.WithError(err).Errorf("Failed to remove cached log %s", logKey)
		}
		processed++
	}

	if processed > 0 || failed > 0 {
		logrus.Infof("Flushed %d cached logs to database, %d errors", processed, failed)
	}
	return nil
}

type archivedGradeExport struct {
	GradeID        uint      `json:"grade_id"`
	StudentID      uint      `json:"student_id"`
	Matricule      string    `json:"matricule"`
	ClassSubjectID uint      `json:"class_subject_id"`
	SequenceID     uint      `json:"sequence_id"`
	Value          float64   `json:"value"`
	CreatedAt      time.Time `json:"created_at"`
}

type archivedBulletinExport struct {
	BulletinID uint     `json:"bulletin_id"`
	StudentID  uint     `json:"student_id"`
	Matricule  string   `json:"matricule"`
	Kind       string   `json:"kind"`
	Average    *float64 `json:"average"`
	Rank       *uint    `json:"rank"`
	Mention    string   `json:"mention"`
}

// ArchiveSchoolYear snapshots every locked grade and generated bulletin of a
// non-active school year, bundles them (JSON data plus the bulletin PDFs)
// into one ZIP, uploads it to S3 and records the snapshot rows. The live
// rows stay in place; the archive is the durable year-end copy.
func (as *ArchiveService) ArchiveSchoolYear(schoolYearID uint) error {
	var year models.SchoolYear
	if err := database.DB.First(&year, schoolYearID).Error; err != nil {
		return fmt.Errorf("school year not found: %v", err)
	}
	if year.IsActive {
		return fmt.Errorf("refusing to archive the active school year %s", year.Name)
	}

	var grades []models.Grade
	err := database.DB.Preload("Student").
		Joins("JOIN sequences ON sequences.id = grades.sequence_id").
		Joins("JOIN terms ON terms.id = sequences.term_id").
		Where("terms.school_year_id = ? AND grades.status = ?", schoolYearID, models.GradeStatusLocked).
		Find(&grades).Error
	if err != nil {
		return fmt.Errorf("failed to load locked grades: %v", err)
	}

	var bulletins []models.Bulletin
	err = database.DB.Preload("Student").
		Joins("JOIN sequences ON sequences.id = bulletins.sequence_id").
		Joins("JOIN terms ON terms.id = sequences.term_id").
		Where("terms.school_year_id = ?", schoolYearID).
		Find(&bulletins).Error
	if err != nil {
		return fmt.Errorf("failed to load bulletins: %v", err)
	}

	if len(grades) == 0 && len(bulletins) == 0 {
		logrus.Infof("Nothing to archive for school year %s", year.Name)
		return nil
	}

	zipBuffer, err := as.createYearArchive(year, grades, bulletins)
	if err != nil {
		return fmt.Errorf("failed to build archive: %v", err)
	}

	s3Key := fmt.Sprintf("archives/%s/year_%d.zip", year.Name, schoolYearID)
	if err := as.uploadToS3(s3Key, zipBuffer); err != nil {
		return fmt.Errorf("failed to upload archive to S3: %v", err)
	}
	logrus.Infof("Uploaded year archive to S3: %s", s3Key)

	now := time.Now()
	for _, g := range grades {
		record := models.ArchivedGrade{GradeID: g.ID, SchoolYearID: schoolYearID, ArchivedAt: now}
		if err := database.DB.Where("grade_id = ?", g.ID).FirstOrCreate(&record).Error; err != nil {
			logrus.WithError(err).Error("Failed to record archived grade")
		}
	}
	for _, b := range bulletins {
		record := models.ArchivedBulletin{BulletinID: b.ID, S3Key: s3Key, ArchivedAt: now}
		if err := database.DB.Where("bulletin_id = ?", b.ID).FirstOrCreate(&record).Error; err != nil {
			logrus.WithError(err).Error("Failed to record archived bulletin")
		}
	}
	return nil
}

func (as *ArchiveService) createYearArchive(year models.SchoolYear, grades []models.Grade, bulletins []models.Bulletin) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zipWriter := zip.NewWriter(buf)

	gradeExports := make([]archivedGradeExport, 0, len(grades))
	for _, g := range grades {
		gradeExports = append(gradeExports, archivedGradeExport{
			GradeID:        g.ID,
			StudentID:      g.StudentID,
			Matricule:      g.Student.Matricule,
			ClassSubjectID: g.ClassSubjectID,
			SequenceID:     g.SequenceID,
			Value:          g.Value,
			CreatedAt:      g.CreatedAt,
		})
	}
	bulletinExports := make([]archivedBulletinExport, 0, len(bulletins))
	for _, b := range bulletins {
		bulletinExports = append(bulletinExports, archivedBulletinExport{
			BulletinID: b.ID,
			StudentID:  b.StudentID,
			Matricule:  b.Student.Matricule,
			Kind:       b.Kind,
			Average:    b.Average,
			Rank:       b.Rank,
			Mention:    b.Mention,
		})
	}

	dataFile, err := zipWriter.Create("year_data.json")
	if err != nil {
		return nil, err
	}
	encoder := json.NewEncoder(dataFile)
	encoder.SetIndent("", "  ")
	payload := map[string]any{
		"school_year": year.Name,
		"export_date": time.Now().UTC(),
		"grades":      gradeExports,
		"bulletins":   bulletinExports,
	}
	if err := encoder.Encode(payload); err != nil {
		return nil, err
	}

	for _, b := range bulletins {
		if b.PDFPath == "" {
			continue
		}
		src, err := os.Open(b.PDFPath)
		if err != nil {
			logrus.WithError(err).Warnf("Bulletin PDF missing, skipping: %s", b.PDFPath)
			continue
		}
		name := fmt.Sprintf("bulletins/%s_%s_%d.pdf", b.Student.Matricule, b.Kind, b.SequenceID)
		w, err := zipWriter.Create(name)
		if err != nil {
			src.Close()
			return nil, err
		}
		if _, err := io.Copy(w, src); err != nil {
			src.Close()
			return nil, err
		}
		src.Close()
	}

	if err := zipWriter.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (as *ArchiveService) uploadToS3(key string, data *bytes.Buffer) error {
	if as.awsConfig.Region == "" {
		return fmt.Errorf("AWS not configured")
	}

	s3Client := s3.NewFromConfig(as.awsConfig)
	bucketName := config.AppConfig.S3BucketName

	_, err := s3Client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      &bucketName,
		Key:         &key,
		Body:        bytes.NewReader(data.Bytes()),
		ContentType: aws.String("application/zip"),
	})
	return err
}

// DownloadYearArchive streams a previously uploaded archive back from S3.
func (as *ArchiveService) DownloadYearArchive(s3Key string) (io.ReadCloser, error) {
	if as.awsConfig.Region == "" {
		return nil, fmt.Errorf("AWS not configured")
	}

	s3Client := s3.NewFromConfig(as.awsConfig)
	bucketName := config.AppConfig.S3BucketName

	result, err := s3Client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: &bucketName,
		Key:    &s3Key,
	})
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}

// StartMaintenanceScheduler runs the recurring jobs: nightly log flush and a
// weekly sweep archiving every closed year that still has unarchived
// bulletins.
func (as *ArchiveService) StartMaintenanceScheduler() *cron.Cron {
	c := cron.New()

	if _, err := c.AddFunc("30 2 * * *", func() {
		if err := as.FlushCachedLogsToDatabase(); err != nil {
			logrus.WithError(err).Warn("Nightly log flush failed")
		}
	}); err != nil {
		logrus.WithError(err).Error("Failed to schedule log flush job")
	}

	if _, err := c.AddFunc("0 3 * * 0", func() {
		if err := as.archiveClosedYears(); err != nil {
			logrus.WithError(err).Warn("Weekly year archive sweep failed")
		}
	}); err != nil {
		logrus.WithError(err).Error("Failed to schedule year archive job")
	}

	c.Start()
	logrus.Info("Maintenance scheduler started")
	return c
}

func (as *ArchiveService) archiveClosedYears() error {
	var years []models.SchoolYear
	if err := database.DB.Where("is_active = ?", false).Find(&years).Error; err != nil {
		return err
	}
	for _, y := range years {
		var pending int64
		err := database.DB.Model(&models.Bulletin{}).
			Joins("JOIN sequences ON sequences.id = bulletins.sequence_id").
			Joins("JOIN terms ON terms.id = sequences.term_id").
			Joins("LEFT JOIN archived_bulletins ON archived_bulletins.bulletin_id = bulletins.id").
			Where("terms.school_year_id = ? AND archived_bulletins.id IS NULL", y.ID).
			Count(&pending).Error
		if err != nil {
			return err
		}
		if pending == 0 {
			continue
		}
		if err := as.ArchiveSchoolYear(y.ID); err != nil {
			logrus.WithError(err).Errorf("Failed to archive school year %s", y.Name)
		}
	}
	return nil
}
