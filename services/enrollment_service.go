package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"smartbull_go/database"
	"smartbull_go/models"
)

// EnrollmentService keeps student-subject links and draft grade rows in sync
// with classroom membership. Called explicitly after every change that can
// affect enrollment: student create/transfer, class subject create/delete,
// sequence create.
type EnrollmentService struct{}

func NewEnrollmentService() *EnrollmentService {
	return &EnrollmentService{}
}

// ReconcileStudent ensures the student has a StudentSubject link and one
// draft Grade per (class subject, sequence) of their classroom's school year.
// Existing grades are never touched; stale links to subjects no longer taught
// in the classroom are pruned unless marked optional.
func (s *EnrollmentService) ReconcileStudent(studentID uint) error {
	var student models.Student
	if err := database.DB.First(&student, studentID).Error; err != nil {
		return fmt.Errorf("student not found: %v", err)
	}
	return s.reconcile([]models.Student{student}, student.ClassroomID)
}

// ReconcileClassroom runs the same reconciliation over every student of the
// classroom, after its subject list changed.
func (s *EnrollmentService) ReconcileClassroom(classroomID uint) error {
	var students []models.Student
	if err := database.DB.Where("classroom_id = ?", classroomID).Find(&students).Error; err != nil {
		return err
	}
	if len(students) == 0 {
		return nil
	}
	return s.reconcile(students, classroomID)
}

func (s *EnrollmentService) reconcile(students []models.Student, classroomID uint) error {
	var classSubjects []models.ClassSubject
	if err := database.DB.Where("classroom_id = ?", classroomID).Find(&classSubjects).Error; err != nil {
		return err
	}

	var sequences []models.Sequence
	err := database.DB.
		Joins("JOIN terms ON terms.id = sequences.term_id").
		Joins("JOIN school_years ON school_years.id = terms.school_year_id").
		Where("school_years.is_active = ?", true).
		Find(&sequences).Error
	if err != nil {
		return err
	}

	subjectIDs := make([]uint, 0, len(classSubjects))
	for _, cs := range classSubjects {
		subjectIDs = append(subjectIDs, cs.SubjectID)
	}

	return database.DB.Transaction(func(tx *gorm.DB) error {
		for _, st := range students {
			for _, cs := range classSubjects {
				link := models.StudentSubject{StudentID: st.ID, SubjectID: cs.SubjectID}
				if err := tx.Where(&link).FirstOrCreate(&link).Error; err != nil {
					return err
				}
				for _, seq := range sequences {
					grade := models.Grade{
						StudentID:      st.ID,
						ClassSubjectID: cs.ID,
						SequenceID:     seq.ID,
					}
					if err := tx.Where(&grade).
						Attrs(models.Grade{TermID: seq.TermID, Status: models.GradeStatusDraft}).
						FirstOrCreate(&grade).Error; err != nil {
						return err
					}
				}
			}

			// Prune links to subjects the classroom no longer teaches.
			prune := tx.Where("student_id = ? AND is_optional = ?", st.ID, false)
			if len(subjectIDs) > 0 {
				prune = prune.Where("subject_id NOT IN ?", subjectIDs)
			}
			if err := prune.Delete(&models.StudentSubject{}).Error; err != nil {
				return err
			}
		}
		logrus.WithFields(logrus.Fields{
			"classroom_id": classroomID,
			"students":     len(students),
			"subjects":     len(classSubjects),
			"sequences":    len(sequences),
		}).Debug("Enrollment reconciled")
		return nil
	})
}

// ProvisionSequence creates the draft grade rows for one newly created
// sequence across every classroom.
func (s *EnrollmentService) ProvisionSequence(sequenceID uint) error {
	var sequence models.Sequence
	if err := database.DB.First(&sequence, sequenceID).Error; err != nil {
		return fmt.Errorf("sequence not found: %v", err)
	}

	var classSubjects []models.ClassSubject
	if err := database.DB.Find(&classSubjects).Error; err != nil {
		return err
	}

	return database.DB.Transaction(func(tx *gorm.DB) error {
		for _, cs := range classSubjects {
			var students []models.Student
			if err := tx.Where("classroom_id = ?", cs.ClassroomID).Find(&students).Error; err != nil {
				return err
			}
			for _, st := range students {
				grade := models.Grade{
					StudentID:      st.ID,
					ClassSubjectID: cs.ID,
					SequenceID:     sequence.ID,
				}
				if err := tx.Where(&grade).
					Attrs(models.Grade{TermID: sequence.TermID, Status: models.GradeStatusDraft}).
					FirstOrCreate(&grade).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}
