package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"smartbull_go/config"
	"smartbull_go/database"
	"smartbull_go/models"
	"smartbull_go/utils"
)

// ErrGenerationInProgress is returned when another generation run already
// holds the lock for the same classroom and period.
var ErrGenerationInProgress = errors.New("bulletin generation already in progress for this classroom and period")

// MissingGrade identifies one (student, subject) pair without a validated
// grade for the requested sequence.
type MissingGrade struct {
	StudentID      uint   `json:"student_id"`
	Student        string `json:"student"`
	Matricule      string `json:"matricule"`
	ClassSubjectID uint   `json:"class_subject_id"`
	Subject        string `json:"subject"`
}

// MissingGradesError aborts a sequence generation run. It carries the
// complete list of missing pairs so the caller can fix everything in one
// pass instead of replaying the request per pair.
type MissingGradesError struct {
	ClassroomID uint           `json:"classroom_id"`
	SequenceID  uint           `json:"sequence_id"`
	Pairs       []MissingGrade `json:"pairs"`
}

func (e *MissingGradesError) Error() string {
	return fmt.Sprintf("%d validated grade(s) missing for classroom %d, sequence %d", len(e.Pairs), e.ClassroomID, e.SequenceID)
}

// MissingBulletin identifies one (student, sequence) pair without a generated
// sequence bulletin, blocking a term or year aggregate.
type MissingBulletin struct {
	StudentID  uint   `json:"student_id"`
	Student    string `json:"student"`
	SequenceID uint   `json:"sequence_id"`
	Sequence   string `json:"sequence"`
}

// MissingBulletinsError aborts a term or year aggregate run, listing every
// sequence bulletin that must be generated first.
type MissingBulletinsError struct {
	ClassroomID uint              `json:"classroom_id"`
	Pairs       []MissingBulletin `json:"pairs"`
}

func (e *MissingBulletinsError) Error() string {
	return fmt.Sprintf("%d sequence bulletin(s) missing for classroom %d", len(e.Pairs), e.ClassroomID)
}

// Notifier pushes a message to every user holding one of the given roles.
type Notifier interface {
	NotifyRoles(roles []string, title, message, notificationType string)
}

// Generation locks: Redis SETNX when available, an in-process set otherwise.
// The TTL bounds how long a crashed run can block regeneration.
const generationLockTTL = 10 * time.Minute

var localGenerationLocks = struct {
	sync.Mutex
	held map[string]bool
}{held: make(map[string]bool)}

func acquireGenerationLock(key string) (func(), error) {
	if rdb := database.GetRedisClient(); rdb != nil {
		ctx := context.Background()
		ok, err := rdb.SetNX(ctx, key, "1", generationLockTTL).Result()
		if err == nil {
			if !ok {
				return nil, ErrGenerationInProgress
			}
			return func() { rdb.Del(context.Background(), key) }, nil
		}
		logrus.WithError(err).Warn("Redis unavailable for generation lock, falling back to local lock")
	}

	localGenerationLocks.Lock()
	defer localGenerationLocks.Unlock()
	if localGenerationLocks.held[key] {
		return nil, ErrGenerationInProgress
	}
	localGenerationLocks.held[key] = true
	return func() {
		localGenerationLocks.Lock()
		delete(localGenerationLocks.held, key)
		localGenerationLocks.Unlock()
	}, nil
}

// BulletinService orchestrates report-card generation: averages, ranks,
// mentions, PDF rendering and the final grade lock, all behind an advisory
// lock per (classroom, period).
type BulletinService struct {
	averages *AverageService
	ranks    *RankService
	mentions *MentionService
	renderer *PDFRenderer
	notifier Notifier
}

func NewBulletinService(notifier Notifier) *BulletinService {
	return &BulletinService{
		averages: NewAverageService(),
		ranks:    NewRankService(),
		mentions: NewMentionService(),
		renderer: NewPDFRenderer(),
		notifier: notifier,
	}
}

type gradeKey struct {
	studentID      uint
	classSubjectID uint
}

// activeTemplate returns the header/footer of the active bulletin template,
// preferring a year-specific one over the global default.
func activeTemplate(schoolYearID uint) (header, footer string) {
	var templates []models.BulletinTemplate
	if err := database.DB.Where("active = ?", true).Find(&templates).Error; err != nil {
		return "", ""
	}
	for _, t := range templates {
		if t.SchoolYearID != nil && *t.SchoolYearID == schoolYearID {
			return t.HeaderText, t.FooterText
		}
	}
	for _, t := range templates {
		if t.SchoolYearID == nil {
			return t.HeaderText, t.FooterText
		}
	}
	return "", ""
}

// GenerateForClassroomSequence generates one bulletin per ranked student of
// the classroom for the sequence. The run is atomic in effect: it aborts with
// a MissingGradesError before writing anything if any enrolled student lacks
// a validated grade for any of the classroom's subjects, and the bulletin
// upserts plus the validated->locked grade flip commit in one transaction.
// Regeneration is allowed: locked grades satisfy the precondition and the
// existing rows are overwritten.
func (s *BulletinService) GenerateForClassroomSequence(classroomID, sequenceID, userID uint) ([]models.Bulletin, error) {
	release, err := acquireGenerationLock(fmt.Sprintf("bulletin:lock:%d:sequence:%d", classroomID, sequenceID))
	if err != nil {
		return nil, err
	}
	defer release()

	var classroom models.Classroom
	if err := database.DB.Preload("ClassSubjects.Subject").First(&classroom, classroomID).Error; err != nil {
		return nil, fmt.Errorf("classroom not found: %v", err)
	}
	var sequence models.Sequence
	if err := database.DB.Preload("Term.SchoolYear").First(&sequence, sequenceID).Error; err != nil {
		return nil, fmt.Errorf("sequence not found: %v", err)
	}

	var students []models.Student
	if err := database.DB.Where("classroom_id = ?", classroomID).
		Order("last_name, first_name").Find(&students).Error; err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return []models.Bulletin{}, nil
	}

	grades, err := s.loadSequenceGrades(classroomID, sequenceID)
	if err != nil {
		return nil, err
	}
	enrolled, err := loadEnrollments(students)
	if err != nil {
		return nil, err
	}

	// Precondition sweep: collect every missing pair before touching anything.
	missing := missingGradePairs(students, classroom.ClassSubjects, grades, enrolled)
	if len(missing) > 0 {
		return nil, &MissingGradesError{ClassroomID: classroomID, SequenceID: sequenceID, Pairs: missing}
	}

	subjectRanks := make(map[uint]map[uint]uint, len(classroom.ClassSubjects))
	for _, cs := range classroom.ClassSubjects {
		ranked, err := s.ranks.RankSubjectSequence(cs.ID, sequenceID)
		if err != nil {
			return nil, err
		}
		byStudent := make(map[uint]uint, len(ranked))
		for _, r := range ranked {
			byStudent[r.StudentID] = r.Rank
		}
		subjectRanks[cs.ID] = byStudent
	}

	overall, err := s.ranks.RankClassSequence(classroomID, sequenceID)
	if err != nil {
		return nil, err
	}

	var rules []models.MentionRule
	if err := database.DB.Where("school_year_id = ?", sequence.Term.SchoolYearID).Find(&rules).Error; err != nil {
		return nil, err
	}
	header, footer := activeTemplate(sequence.Term.SchoolYearID)

	studentByID := make(map[uint]models.Student, len(students))
	for _, st := range students {
		studentByID[st.ID] = st
	}

	bulletins := make([]models.Bulletin, 0, len(overall))
	now := time.Now()
	for _, entry := range overall {
		st := studentByID[entry.StudentID]
		avg := entry.Average
		mention := ResolveMention(rules, avg)

		var rows []BulletinRow
		var coefSum float64
		for _, cs := range classroom.ClassSubjects {
			g, ok := grades[gradeKey{st.ID, cs.ID}]
			if !ok {
				continue
			}
			coefSum += cs.Coefficient
			rows = append(rows, BulletinRow{
				Subject:      cs.Subject.Name,
				Note:         g.Value,
				Coefficient:  cs.Coefficient,
				WeightedNote: utils.Round2(g.Value * cs.Coefficient),
				SubjectRank:  subjectRanks[cs.ID][st.ID],
			})
		}
		for i := range rows {
			rows[i].CoefSum = coefSum
		}

		data := BulletinData{
			Title:         fmt.Sprintf("Bulletin de notes - %s", sequence.Name),
			StudentName:   st.FullName(),
			Matricule:     st.Matricule,
			ClassroomName: classroom.Name,
			PeriodName:    fmt.Sprintf("%s (%s)", sequence.Name, sequence.Term.Name),
			Rows:          rows,
			Average:       avg,
			Rank:          entry.Rank,
			RosterSize:    len(overall),
			Appreciation:  Appreciation(&avg),
			HeaderText:    header,
			FooterText:    footer,
		}
		if mention != nil {
			data.Mention = *mention
		}

		pdfPath, err := s.writePDF(data, classroomID, sequenceID, models.BulletinKindSequence, st.Matricule)
		if err != nil {
			return nil, err
		}

		b := models.Bulletin{
			StudentID:    st.ID,
			ClassroomID:  classroomID,
			SequenceID:   sequenceID,
			Kind:         models.BulletinKindSequence,
			PDFPath:      pdfPath,
			Average:      &avg,
			Mention:      data.Mention,
			Appreciation: data.Appreciation,
			GeneratedAt:  now,
		}
		rank := entry.Rank
		b.Rank = &rank
		bulletins = append(bulletins, b)
	}

	classSubjectIDs := make([]uint, 0, len(classroom.ClassSubjects))
	for _, cs := range classroom.ClassSubjects {
		classSubjectIDs = append(classSubjectIDs, cs.ID)
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		for i := range bulletins {
			if err := upsertBulletin(tx, &bulletins[i]); err != nil {
				return err
			}
		}
		// One batch flip: every validated grade of the run becomes locked.
		return tx.Model(&models.Grade{}).
			Where("class_subject_id IN ? AND sequence_id = ? AND status = ?",
				classSubjectIDs, sequenceID, models.GradeStatusValidated).
			Updates(gradeLockUpdates()).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"classroom_id": classroomID,
		"sequence_id":  sequenceID,
		"bulletins":    len(bulletins),
		"user_id":      userID,
	}).Info("Sequence bulletins generated")

	if s.notifier != nil {
		s.notifier.NotifyRoles(
			[]string{models.RoleAdmin, models.RoleSecretary},
			"Bulletins générés",
			fmt.Sprintf("%d bulletins générés pour %s - %s", len(bulletins), classroom.Name, sequence.Name),
			"success",
		)
	}
	return bulletins, nil
}

// GenerateTermAggregate builds one term bulletin per student as the mean of
// their already-generated sequence bulletins. It aborts with a
// MissingBulletinsError when any (student, sequence) bulletin of the term is
// missing.
func (s *BulletinService) GenerateTermAggregate(classroomID, termID, userID uint) ([]models.Bulletin, error) {
	var term models.Term
	if err := database.DB.Preload("SchoolYear").Preload("Sequences", func(db *gorm.DB) *gorm.DB {
		return db.Order("`order`")
	}).First(&term, termID).Error; err != nil {
		return nil, fmt.Errorf("term not found: %v", err)
	}
	if len(term.Sequences) == 0 {
		return nil, fmt.Errorf("term %s has no sequences", term.Name)
	}

	release, err := acquireGenerationLock(fmt.Sprintf("bulletin:lock:%d:term:%d", classroomID, termID))
	if err != nil {
		return nil, err
	}
	defer release()

	periodName := fmt.Sprintf("%s (%s)", term.Name, term.SchoolYear.Name)
	tID := term.ID
	extra := func(b *models.Bulletin) { b.TermID = &tID }
	return s.generateAggregate(classroomID, term.SchoolYearID, term.Sequences,
		models.BulletinKindTerm, fmt.Sprintf("Bulletin trimestriel - %s", term.Name), periodName, userID, extra)
}

// GenerateYearAggregate builds one annual bulletin per student over every
// sequence of the school year, with the same precondition as term aggregates.
func (s *BulletinService) GenerateYearAggregate(classroomID, schoolYearID, userID uint) ([]models.Bulletin, error) {
	var year models.SchoolYear
	if err := database.DB.Preload("Terms", func(db *gorm.DB) *gorm.DB {
		return db.Order("`order`")
	}).Preload("Terms.Sequences", func(db *gorm.DB) *gorm.DB {
		return db.Order("`order`")
	}).First(&year, schoolYearID).Error; err != nil {
		return nil, fmt.Errorf("school year not found: %v", err)
	}

	var sequences []models.Sequence
	for _, t := range year.Terms {
		sequences = append(sequences, t.Sequences...)
	}
	if len(sequences) == 0 {
		return nil, fmt.Errorf("school year %s has no sequences", year.Name)
	}

	release, err := acquireGenerationLock(fmt.Sprintf("bulletin:lock:%d:year:%d", classroomID, schoolYearID))
	if err != nil {
		return nil, err
	}
	defer release()

	yID := year.ID
	extra := func(b *models.Bulletin) { b.SchoolYearID = &yID }
	return s.generateAggregate(classroomID, schoolYearID, sequences,
		models.BulletinKindYear, fmt.Sprintf("Bulletin annuel - %s", year.Name), year.Name, userID, extra)
}

// generateAggregate is the shared term/year path: precondition check over the
// sequence bulletins, mean of their averages, re-ranking, rendering, upsert.
func (s *BulletinService) generateAggregate(classroomID, schoolYearID uint, sequences []models.Sequence,
	kind, title, periodName string, userID uint, extra func(*models.Bulletin)) ([]models.Bulletin, error) {

	var classroom models.Classroom
	if err := database.DB.First(&classroom, classroomID).Error; err != nil {
		return nil, fmt.Errorf("classroom not found: %v", err)
	}
	var students []models.Student
	if err := database.DB.Where("classroom_id = ?", classroomID).
		Order("last_name, first_name").Find(&students).Error; err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return []models.Bulletin{}, nil
	}

	sequenceIDs := make([]uint, 0, len(sequences))
	sequenceByID := make(map[uint]models.Sequence, len(sequences))
	for _, seq := range sequences {
		sequenceIDs = append(sequenceIDs, seq.ID)
		sequenceByID[seq.ID] = seq
	}

	var seqBulletins []models.Bulletin
	err := database.DB.
		Where("classroom_id = ? AND sequence_id IN ? AND kind = ?",
			classroomID, sequenceIDs, models.BulletinKindSequence).
		Find(&seqBulletins).Error
	if err != nil {
		return nil, err
	}

	type pair struct{ studentID, sequenceID uint }
	existing := make(map[pair]models.Bulletin, len(seqBulletins))
	for _, b := range seqBulletins {
		existing[pair{b.StudentID, b.SequenceID}] = b
	}

	var missing []MissingBulletin
	for _, st := range students {
		for _, seq := range sequences {
			if _, ok := existing[pair{st.ID, seq.ID}]; !ok {
				missing = append(missing, MissingBulletin{
					StudentID:  st.ID,
					Student:    st.FullName(),
					SequenceID: seq.ID,
					Sequence:   seq.Name,
				})
			}
		}
	}
	if len(missing) > 0 {
		return nil, &MissingBulletinsError{ClassroomID: classroomID, Pairs: missing}
	}

	// Period average = plain mean of the student's sequence bulletin averages.
	entries := make([]RankedStudent, 0, len(students))
	summariesByStudent := make(map[uint][]SequenceSummary, len(students))
	for _, st := range students {
		var sum float64
		var n int
		summaries := make([]SequenceSummary, 0, len(sequences))
		for _, seq := range sequences {
			b := existing[pair{st.ID, seq.ID}]
			summaries = append(summaries, SequenceSummary{Sequence: seq.Name, Average: b.Average, Rank: b.Rank})
			if b.Average != nil {
				sum += *b.Average
				n++
			}
		}
		summariesByStudent[st.ID] = summaries
		if n == 0 {
			continue
		}
		entries = append(entries, RankedStudent{
			StudentID: st.ID,
			Student:   st.FullName(),
			Average:   utils.Round2(sum / float64(n)),
		})
	}
	ranked := AssignRanks(entries)

	var rules []models.MentionRule
	if err := database.DB.Where("school_year_id = ?", schoolYearID).Find(&rules).Error; err != nil {
		return nil, err
	}
	header, footer := activeTemplate(schoolYearID)

	studentByID := make(map[uint]models.Student, len(students))
	for _, st := range students {
		studentByID[st.ID] = st
	}

	anchorSequenceID := sequenceIDs[0]
	bulletins := make([]models.Bulletin, 0, len(ranked))
	now := time.Now()
	for _, entry := range ranked {
		st := studentByID[entry.StudentID]
		avg := entry.Average
		mention := ResolveMention(rules, avg)

		data := BulletinData{
			Title:         title,
			StudentName:   st.FullName(),
			Matricule:     st.Matricule,
			ClassroomName: classroom.Name,
			PeriodName:    periodName,
			Summaries:     summariesByStudent[st.ID],
			Average:       avg,
			Rank:          entry.Rank,
			RosterSize:    len(ranked),
			Appreciation:  Appreciation(&avg),
			HeaderText:    header,
			FooterText:    footer,
		}
		if mention != nil {
			data.Mention = *mention
		}

		pdfPath, err := s.writePDF(data, classroomID, anchorSequenceID, kind, st.Matricule)
		if err != nil {
			return nil, err
		}

		b := models.Bulletin{
			StudentID:    st.ID,
			ClassroomID:  classroomID,
			SequenceID:   anchorSequenceID,
			Kind:         kind,
			PDFPath:      pdfPath,
			Average:      &avg,
			Mention:      data.Mention,
			Appreciation: data.Appreciation,
			GeneratedAt:  now,
		}
		rank := entry.Rank
		b.Rank = &rank
		extra(&b)
		bulletins = append(bulletins, b)
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		for i := range bulletins {
			if err := upsertBulletin(tx, &bulletins[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"classroom_id": classroomID,
		"kind":         kind,
		"bulletins":    len(bulletins),
		"user_id":      userID,
	}).Info("Aggregate bulletins generated")

	if s.notifier != nil {
		s.notifier.NotifyRoles(
			[]string{models.RoleAdmin, models.RoleSecretary},
			"Bulletins générés",
			fmt.Sprintf("%d bulletins (%s) générés pour %s", len(bulletins), kind, classroom.Name),
			"success",
		)
	}
	return bulletins, nil
}

// upsertBulletin overwrites the existing row of the same unique key, keeping
// its primary key stable across regenerations.
func upsertBulletin(tx *gorm.DB, b *models.Bulletin) error {
	var existing models.Bulletin
	err := tx.Where("student_id = ? AND classroom_id = ? AND sequence_id = ? AND kind = ?",
		b.StudentID, b.ClassroomID, b.SequenceID, b.Kind).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(b).Error
		}
		return err
	}
	b.ID = existing.ID
	b.CreatedAt = existing.CreatedAt
	return tx.Save(b).Error
}

// missingGradePairs sweeps the roster against the classroom's subjects and
// reports every (student, subject) pair without a usable grade. Optional
// subjects count only for students explicitly linked to them. The full list
// comes back in roster order so a caller can fix everything in one pass.
func missingGradePairs(students []models.Student, classSubjects []models.ClassSubject,
	grades map[gradeKey]models.Grade, enrolled map[gradeKey]bool) []MissingGrade {

	var missing []MissingGrade
	for _, st := range students {
		for _, cs := range classSubjects {
			if cs.Subject.Category == "optional" && !enrolled[gradeKey{st.ID, cs.SubjectID}] {
				continue
			}
			if _, ok := grades[gradeKey{st.ID, cs.ID}]; !ok {
				missing = append(missing, MissingGrade{
					StudentID:      st.ID,
					Student:        st.FullName(),
					Matricule:      st.Matricule,
					ClassSubjectID: cs.ID,
					Subject:        cs.Subject.Name,
				})
			}
		}
	}
	return missing
}

// gradeLockUpdates is the column set of the batch validated->locked flip.
// Status only: validated_by keeps the identity recorded at validation time.
func gradeLockUpdates() map[string]interface{} {
	return map[string]interface{}{"status": models.GradeStatusLocked}
}

func (s *BulletinService) loadSequenceGrades(classroomID, sequenceID uint) (map[gradeKey]models.Grade, error) {
	var grades []models.Grade
	err := database.DB.
		Joins("JOIN class_subjects ON class_subjects.id = grades.class_subject_id").
		Where("class_subjects.classroom_id = ? AND grades.sequence_id = ? AND grades.status IN ?",
			classroomID, sequenceID, []string{models.GradeStatusValidated, models.GradeStatusLocked}).
		Find(&grades).Error
	if err != nil {
		return nil, err
	}
	out := make(map[gradeKey]models.Grade, len(grades))
	for _, g := range grades {
		out[gradeKey{g.StudentID, g.ClassSubjectID}] = g
	}
	return out, nil
}

// loadEnrollments maps (studentID, subjectID) to true for every explicit
// student-subject link, used to exempt optional subjects.
func loadEnrollments(students []models.Student) (map[gradeKey]bool, error) {
	ids := make([]uint, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	var links []models.StudentSubject
	if err := database.DB.Where("student_id IN ?", ids).Find(&links).Error; err != nil {
		return nil, err
	}
	out := make(map[gradeKey]bool, len(links))
	for _, l := range links {
		out[gradeKey{l.StudentID, l.SubjectID}] = true
	}
	return out, nil
}

func (s *BulletinService) writePDF(data BulletinData, classroomID, sequenceID uint, kind, matricule string) (string, error) {
	pdfBytes, err := s.renderer.RenderBulletin(data)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(config.AppConfig.BulletinDir, fmt.Sprintf("%d", classroomID), fmt.Sprintf("%s_%d", kind, sequenceID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bulletin directory: %v", err)
	}
	path := filepath.Join(dir, utils.SanitizeFilename(matricule)+".pdf")
	if err := os.WriteFile(path, pdfBytes, 0o644); err != nil {
		return "", fmt.Errorf("failed to write bulletin PDF: %v", err)
	}
	return path, nil
}
