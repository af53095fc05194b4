package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	s, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = append((*j)[0:0], s...)
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// User roles
const (
	RoleAdmin     = "admin"
	RoleSecretary = "secretary"
	RoleTeacher   = "teacher"
	RoleParent    = "parent"
	RoleStudent   = "student"
)

// Grade statuses. Transitions go forward only: draft -> validated -> locked.
// Unlocking (locked -> validated) happens only through the privileged
// override endpoint.
const (
	GradeStatusDraft     = "draft"
	GradeStatusValidated = "validated"
	GradeStatusLocked    = "locked"
)

// Bulletin kinds: the granularity one bulletin row aggregates.
const (
	BulletinKindSequence = "sequence"
	BulletinKindTerm     = "term"
	BulletinKindYear     = "year"
)

// User model
type User struct {
	BaseModel
	Username  string `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Password  string `json:"-" gorm:"size:255;not null"`
	Email     string `json:"email" gorm:"size:255"`
	FirstName string `json:"first_name" gorm:"size:100"`
	LastName  string `json:"last_name" gorm:"size:100"`
	Role      string `json:"role" gorm:"size:20;not null;default:'student';type:enum('admin','secretary','teacher','parent','student')"`
	Active    bool   `json:"active" gorm:"default:true"`
}

// SchoolYear model. Exactly one year is active at a time; activation runs as
// a single clear-then-set transaction.
type SchoolYear struct {
	BaseModel
	Name      string     `json:"name" gorm:"size:20;not null;uniqueIndex"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	IsActive  bool       `json:"is_active" gorm:"default:false"`

	// Relationships
	Terms []Term `json:"terms,omitempty" gorm:"foreignKey:SchoolYearID"`
}

// Term model (trimester). Weight is its contribution to the year average.
type Term struct {
	BaseModel
	SchoolYearID uint    `json:"school_year_id" gorm:"not null;index"`
	Name         string  `json:"name" gorm:"size:20;not null"` // T1, T2, T3
	Order        uint    `json:"order" gorm:"not null"`
	Weight       float64 `json:"weight" gorm:"default:1"`

	// Relationships
	SchoolYear SchoolYear `json:"school_year,omitempty" gorm:"foreignKey:SchoolYearID"`
	Sequences  []Sequence `json:"sequences,omitempty" gorm:"foreignKey:TermID"`
}

// Sequence model: the smallest grading period within a term. The active
// sequence is the one currently open for grade entry; at most one is active.
type Sequence struct {
	BaseModel
	TermID uint    `json:"term_id" gorm:"not null;index"`
	Name   string  `json:"name" gorm:"size:20;not null"` // S1, S2, ...
	Order  uint    `json:"order" gorm:"not null"`
	Weight float64 `json:"weight" gorm:"default:1"`
	Active bool    `json:"active" gorm:"default:false"`

	// Relationships
	Term Term `json:"term,omitempty" gorm:"foreignKey:TermID"`
}

// Classroom model
type Classroom struct {
	BaseModel
	Name          string `json:"name" gorm:"size:50;not null"`
	Level         string `json:"level" gorm:"size:20"`
	Series        string `json:"series" gorm:"size:20"`
	HeadTeacherID *uint  `json:"head_teacher_id"`

	// Relationships
	HeadTeacher   *Teacher       `json:"head_teacher,omitempty" gorm:"foreignKey:HeadTeacherID"`
	Students      []Student      `json:"students,omitempty" gorm:"foreignKey:ClassroomID"`
	ClassSubjects []ClassSubject `json:"class_subjects,omitempty" gorm:"foreignKey:ClassroomID"`
}

// Student model
type Student struct {
	BaseModel
	Matricule   string     `json:"matricule" gorm:"size:20;not null;uniqueIndex"`
	FirstName   string     `json:"first_name" gorm:"size:50;not null"`
	LastName    string     `json:"last_name" gorm:"size:50;not null"`
	Gender      string     `json:"gender" gorm:"size:10;type:enum('M','F')"`
	BirthDate   *time.Time `json:"birth_date"`
	BirthPlace  string     `json:"birth_place" gorm:"size:100"`
	PhotoURL    string     `json:"photo_url" gorm:"size:500"`
	ClassroomID uint       `json:"classroom_id" gorm:"not null;index"`
	Repeater    bool       `json:"repeater" gorm:"default:false"`

	// Relationships
	Classroom Classroom `json:"classroom,omitempty" gorm:"foreignKey:ClassroomID"`
}

// Teacher model
type Teacher struct {
	BaseModel
	UserID uint   `json:"user_id" gorm:"uniqueIndex;not null"`
	Phone  string `json:"phone" gorm:"size:20"`
	Active bool   `json:"active" gorm:"default:true"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Subject model
type Subject struct {
	BaseModel
	Code     string `json:"code" gorm:"size:10;not null;uniqueIndex"`
	Name     string `json:"name" gorm:"size:100;not null"`
	Category string `json:"category" gorm:"size:20;default:'core';type:enum('core','optional','extra')"`
}

// ClassSubject: a subject as taught in one classroom, carrying the subject's
// coefficient within that classroom.
type ClassSubject struct {
	BaseModel
	ClassroomID uint    `json:"classroom_id" gorm:"not null;uniqueIndex:idx_class_subject"`
	SubjectID   uint    `json:"subject_id" gorm:"not null;uniqueIndex:idx_class_subject"`
	Coefficient float64 `json:"coefficient" gorm:"default:1"`
	TeacherID   *uint   `json:"teacher_id"`

	// Relationships
	Classroom Classroom `json:"classroom,omitempty" gorm:"foreignKey:ClassroomID"`
	Subject   Subject   `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Teacher   *Teacher  `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
}

// StudentSubject: explicit enrollment link, kept in sync with classroom
// membership by the enrollment reconciliation service.
type StudentSubject struct {
	BaseModel
	StudentID  uint `json:"student_id" gorm:"not null;uniqueIndex:idx_student_subject"`
	SubjectID  uint `json:"subject_id" gorm:"not null;uniqueIndex:idx_student_subject"`
	IsOptional bool `json:"is_optional" gorm:"default:false"`

	// Relationships
	Student Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Subject Subject `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
}

// Grade: the atomic mark. Value stays within [0,20].
type Grade struct {
	BaseModel
	StudentID      uint    `json:"student_id" gorm:"not null;uniqueIndex:idx_grade_unique"`
	ClassSubjectID uint    `json:"class_subject_id" gorm:"not null;uniqueIndex:idx_grade_unique"`
	TermID         uint    `json:"term_id" gorm:"not null;index"`
	SequenceID     uint    `json:"sequence_id" gorm:"not null;uniqueIndex:idx_grade_unique"`
	Value          float64 `json:"value" gorm:"not null;default:0"`
	Comment        string  `json:"comment" gorm:"type:text"`
	Status         string  `json:"status" gorm:"size:10;not null;default:'draft';type:enum('draft','validated','locked')"`
	CreatedByID    *uint   `json:"created_by_id"`
	UpdatedByID    *uint   `json:"updated_by_id"`
	ValidatedByID  *uint   `json:"validated_by_id"`

	// Relationships
	Student      Student      `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	ClassSubject ClassSubject `json:"class_subject,omitempty" gorm:"foreignKey:ClassSubjectID"`
	Term         Term         `json:"term,omitempty" gorm:"foreignKey:TermID"`
	Sequence     Sequence     `json:"sequence,omitempty" gorm:"foreignKey:SequenceID"`
	CreatedBy    *User        `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
	UpdatedBy    *User        `json:"updated_by,omitempty" gorm:"foreignKey:UpdatedByID"`
	ValidatedBy  *User        `json:"validated_by,omitempty" gorm:"foreignKey:ValidatedByID"`
}

// Bulletin: a generated report-card snapshot. One row per (student,
// classroom, sequence, kind); regeneration overwrites the row. For term and
// year aggregates SequenceID references the first sequence of the period and
// TermID/SchoolYearID identify the period itself.
type Bulletin struct {
	BaseModel
	StudentID    uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_bulletin_unique"`
	ClassroomID  uint      `json:"classroom_id" gorm:"not null;uniqueIndex:idx_bulletin_unique"`
	SequenceID   uint      `json:"sequence_id" gorm:"not null;uniqueIndex:idx_bulletin_unique"`
	Kind         string    `json:"kind" gorm:"size:10;not null;default:'sequence';uniqueIndex:idx_bulletin_unique;type:enum('sequence','term','year')"`
	TermID       *uint     `json:"term_id"`
	SchoolYearID *uint     `json:"school_year_id"`
	PDFPath      string    `json:"pdf_path" gorm:"size:500"`
	Average      *float64  `json:"average"`
	Rank         *uint     `json:"rank"`
	Mention      string    `json:"mention" gorm:"size:20"`
	Appreciation string    `json:"appreciation" gorm:"type:text"`
	GeneratedAt  time.Time `json:"generated_at"`

	// Relationships
	Student   Student   `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Classroom Classroom `json:"classroom,omitempty" gorm:"foreignKey:ClassroomID"`
	Sequence  Sequence  `json:"sequence,omitempty" gorm:"foreignKey:SequenceID"`
}

// MentionRule: a (label, min, max) band for one school year.
type MentionRule struct {
	BaseModel
	SchoolYearID uint    `json:"school_year_id" gorm:"not null;index"`
	Label        string  `json:"label" gorm:"size:20;not null"` // TB, Bien, AB, Passable
	MinAvg       float64 `json:"min_avg" gorm:"not null"`
	MaxAvg       float64 `json:"max_avg" gorm:"not null"`

	// Relationships
	SchoolYear SchoolYear `json:"school_year,omitempty" gorm:"foreignKey:SchoolYearID"`
}

// Sanction: applied once recorded absence hours reach MinAbsenceHours.
type Sanction struct {
	BaseModel
	Text            string `json:"text" gorm:"size:255;not null"`
	MinAbsenceHours uint   `json:"min_absence_hours" gorm:"not null;uniqueIndex"`
}

// Discipline: absence/lateness record per student per term. SanctionID is
// assigned automatically from the Sanction thresholds.
type Discipline struct {
	BaseModel
	StudentID  uint  `json:"student_id" gorm:"not null;index"`
	TermID     uint  `json:"term_id" gorm:"not null;index"`
	SequenceID *uint `json:"sequence_id"`
	Absences   uint  `json:"absences" gorm:"default:0"`
	Lates      uint  `json:"lates" gorm:"default:0"`
	SanctionID *uint `json:"sanction_id"`

	// Relationships
	Student  Student   `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Term     Term      `json:"term,omitempty" gorm:"foreignKey:TermID"`
	Sanction *Sanction `json:"sanction,omitempty" gorm:"foreignKey:SanctionID"`
}

// BulletinTemplate: header/footer text printed on every bulletin PDF.
type BulletinTemplate struct {
	BaseModel
	SchoolYearID *uint  `json:"school_year_id"`
	Name         string `json:"name" gorm:"size:100;default:'Canevas bulletin'"`
	HeaderText   string `json:"header_text" gorm:"type:text"`
	FooterText   string `json:"footer_text" gorm:"type:text"`
	Active       bool   `json:"active" gorm:"default:true"`
}

// Settings per school year
type Settings struct {
	BaseModel
	SchoolYearID uint    `json:"school_year_id" gorm:"not null;uniqueIndex"`
	ScaleMax     float64 `json:"scale_max" gorm:"default:20"`
	Rounding     uint    `json:"rounding" gorm:"default:2"`
	MinPassAvg   float64 `json:"min_pass_avg" gorm:"default:10"`
	Localization string  `json:"localization" gorm:"size:10;default:'FR'"`
}

// ArchivedGrade: year-end snapshot of a locked grade.
type ArchivedGrade struct {
	BaseModel
	GradeID      uint      `json:"grade_id" gorm:"not null;index"`
	SchoolYearID uint      `json:"school_year_id" gorm:"not null;index"`
	ArchivedAt   time.Time `json:"archived_at"`
}

// ArchivedBulletin: year-end snapshot of a bulletin, with the S3 key of the
// archived PDF bundle it was included in.
type ArchivedBulletin struct {
	BaseModel
	BulletinID uint      `json:"bulletin_id" gorm:"not null;index"`
	S3Key      string    `json:"s3_key" gorm:"size:500"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Notification model
type Notification struct {
	BaseModel
	UserID  uint       `json:"user_id" gorm:"not null;index"`
	Title   string     `json:"title" gorm:"size:255;not null"`
	Message string     `json:"message" gorm:"type:text;not null"`
	Type    string     `json:"type" gorm:"size:50;not null;default:'info';type:enum('info','warning','error','success')"`
	Read    bool       `json:"read" gorm:"default:false"`
	ReadAt  *time.Time `json:"read_at"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// IsAdminOrSecretary reports whether the user can manage school records.
func (u *User) IsAdminOrSecretary() bool {
	return u.Role == RoleAdmin || u.Role == RoleSecretary
}

// FullName as printed on bulletins: last name first.
func (s *Student) FullName() string {
	return s.LastName + " " + s.FirstName
}

// NeverEntered reports whether the grade still carries its provisioned zero:
// nobody has written to it since reconciliation created the draft. An
// explicitly entered zero has an updater and does not count.
func (g *Grade) NeverEntered() bool {
	return g.Value == 0 && g.UpdatedByID == nil
}

// CanTransitionGradeStatus reports whether a grade may move from one status
// to another. Forward only; the privileged unlock path is handled separately.
func CanTransitionGradeStatus(from, to string) bool {
	switch from {
	case GradeStatusDraft:
		return to == GradeStatusDraft || to == GradeStatusValidated
	case GradeStatusValidated:
		return to == GradeStatusValidated || to == GradeStatusLocked
	case GradeStatusLocked:
		return to == GradeStatusLocked
	}
	return false
}
