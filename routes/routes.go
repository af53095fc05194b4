package routes

import (
	"github.com/gofiber/fiber/v2"

	"smartbull_go/controllers"
	"smartbull_go/middleware"
	ws "smartbull_go/services/websocket"
)

// SetupRoutes wires the HTTP surface. Public routes are health and login;
// everything else sits behind JWT, with write access restricted per role.
func SetupRoutes(app *fiber.App, hub *ws.Hub) {
	authController := &controllers.AuthController{}
	healthController := &controllers.HealthController{}
	schoolYearController := &controllers.SchoolYearController{}
	classroomController := &controllers.ClassroomController{}
	subjectController := &controllers.SubjectController{}
	studentController := &controllers.StudentController{}
	teacherController := &controllers.TeacherController{}
	gradeController := &controllers.GradeController{}
	bulletinController := &controllers.BulletinController{}
	disciplineController := &controllers.DisciplineController{}
	settingsController := &controllers.SettingsController{}
	notificationController := &controllers.NotificationController{}
	wsController := controllers.NewWebSocketController(hub)

	api := app.Group("/api")

	// Public
	api.Get("/health", healthController.Health)
	api.Post("/auth/login", authController.Login)

	// Authenticated
	protected := api.Group("", middleware.JWTMiddleware(), middleware.LogActivityMiddleware())

	auth := protected.Group("/auth")
	auth.Post("/logout", authController.Logout)
	auth.Get("/profile", authController.GetProfile)
	auth.Put("/password", authController.ChangePassword)
	auth.Post("/register", middleware.RequireAdmin(), authController.Register)
	auth.Post("/reset-password", middleware.RequireAdmin(), authController.ResetPasswordByAdmin)

	// School calendar
	years := protected.Group("/school-years")
	years.Get("/", schoolYearController.GetSchoolYears)
	years.Get("/active", schoolYearController.GetActiveSchoolYear)
	years.Post("/", middleware.RequireAdminOrSecretary(), schoolYearController.CreateSchoolYear)
	years.Put("/:id/activate", middleware.RequireAdminOrSecretary(), schoolYearController.SetActiveSchoolYear)

	terms := protected.Group("/terms", middleware.RequireAdminOrSecretary())
	terms.Post("/", schoolYearController.CreateTerm)
	terms.Put("/:id", schoolYearController.UpdateTerm)

	sequences := protected.Group("/sequences")
	sequences.Get("/active", schoolYearController.GetActiveSequence)
	sequences.Post("/", middleware.RequireAdminOrSecretary(), schoolYearController.CreateSequence)
	sequences.Put("/:id/activate", middleware.RequireAdminOrSecretary(), schoolYearController.SetActiveSequence)
	sequences.Delete("/:id", middleware.RequireAdminOrSecretary(), schoolYearController.DeleteSequence)

	// Classrooms and subjects
	classrooms := protected.Group("/classrooms")
	classrooms.Get("/", classroomController.GetClassrooms)
	classrooms.Get("/:id", classroomController.GetClassroom)
	classrooms.Post("/", middleware.RequireAdminOrSecretary(), classroomController.CreateClassroom)
	classrooms.Put("/:id", middleware.RequireAdminOrSecretary(), classroomController.UpdateClassroom)
	classrooms.Delete("/:id", middleware.RequireAdminOrSecretary(), classroomController.DeleteClassroom)

	subjects := protected.Group("/subjects")
	subjects.Get("/", subjectController.GetSubjects)
	subjects.Post("/", middleware.RequireAdminOrSecretary(), subjectController.CreateSubject)
	subjects.Put("/:id", middleware.RequireAdminOrSecretary(), subjectController.UpdateSubject)

	classSubjects := protected.Group("/class-subjects", middleware.RequireAdminOrSecretary())
	classSubjects.Post("/", subjectController.AssignSubjectToClass)
	classSubjects.Put("/:id", subjectController.UpdateClassSubject)
	classSubjects.Delete("/:id", subjectController.RemoveSubjectFromClass)

	// People
	students := protected.Group("/students")
	students.Get("/", studentController.GetStudents)
	students.Get("/:id", studentController.GetStudent)
	students.Post("/", middleware.RequireAdminOrSecretary(), studentController.CreateStudent)
	students.Post("/import", middleware.RequireAdminOrSecretary(), studentController.ImportStudents)
	students.Put("/:id", middleware.RequireAdminOrSecretary(), studentController.UpdateStudent)
	students.Put("/:id/transfer", middleware.RequireAdminOrSecretary(), studentController.TransferStudent)
	students.Post("/:id/photo", middleware.RequireAdminOrSecretary(), studentController.UploadStudentPhoto)
	students.Delete("/:id", middleware.RequireAdminOrSecretary(), studentController.DeleteStudent)

	teachers := protected.Group("/teachers")
	teachers.Get("/", teacherController.GetTeachers)
	teachers.Get("/:id", teacherController.GetTeacher)
	teachers.Post("/", middleware.RequireAdminOrSecretary(), teacherController.CreateTeacher)
	teachers.Put("/:id", middleware.RequireAdminOrSecretary(), teacherController.UpdateTeacher)

	// Grades
	grades := protected.Group("/grades", middleware.RequireTeacherOrAbove())
	grades.Get("/", gradeController.GetGrades)
	grades.Post("/", gradeController.SaveGrades)
	grades.Post("/validate", gradeController.ValidateGrades)
	grades.Post("/unlock", middleware.RequireAdmin(), gradeController.UnlockGrades)
	grades.Get("/sheet", gradeController.DownloadGradeSheet)

	// Bulletins
	bulletins := protected.Group("/bulletins")
	bulletins.Post("/generate/sequence", middleware.RequireAdminOrSecretary(), bulletinController.GenerateSequenceBulletins)
	bulletins.Post("/generate/term", middleware.RequireAdminOrSecretary(), bulletinController.GenerateTermBulletins)
	bulletins.Post("/generate/year", middleware.RequireAdminOrSecretary(), bulletinController.GenerateYearBulletins)
	bulletins.Get("/", middleware.RequireTeacherOrAbove(), bulletinController.GetClassBulletins)
	bulletins.Get("/statistics", middleware.RequireTeacherOrAbove(), bulletinController.GetClassStatistics)
	bulletins.Get("/export/excel", middleware.RequireTeacherOrAbove(), bulletinController.ExportClassResults)
	bulletins.Get("/export/zip", middleware.RequireAdminOrSecretary(), bulletinController.ExportBulletinZip)
	bulletins.Get("/mine", bulletinController.GetMyBulletins)
	bulletins.Get("/:id", bulletinController.GetBulletin)
	bulletins.Get("/:id/pdf", bulletinController.DownloadBulletinPDF)

	// Discipline
	discipline := protected.Group("/discipline")
	discipline.Get("/", middleware.RequireTeacherOrAbove(), disciplineController.GetDisciplineRecords)
	discipline.Post("/", middleware.RequireTeacherOrAbove(), disciplineController.RecordDiscipline)
	discipline.Get("/sanctions", disciplineController.GetSanctions)
	discipline.Post("/sanctions", middleware.RequireAdminOrSecretary(), disciplineController.CreateSanction)
	discipline.Delete("/sanctions/:id", middleware.RequireAdminOrSecretary(), disciplineController.DeleteSanction)

	// Settings
	settings := protected.Group("/settings")
	settings.Get("/mention-rules", settingsController.GetMentionRules)
	settings.Post("/mention-rules", middleware.RequireAdminOrSecretary(), settingsController.CreateMentionRule)
	settings.Put("/mention-rules/:id", middleware.RequireAdminOrSecretary(), settingsController.UpdateMentionRule)
	settings.Delete("/mention-rules/:id", middleware.RequireAdminOrSecretary(), settingsController.DeleteMentionRule)
	settings.Get("/", settingsController.GetSettings)
	settings.Put("/", middleware.RequireAdminOrSecretary(), settingsController.UpdateSettings)
	settings.Get("/templates", settingsController.GetBulletinTemplates)
	settings.Post("/templates", middleware.RequireAdminOrSecretary(), settingsController.SaveBulletinTemplate)

	// Notifications
	notifs := protected.Group("/notifications")
	notifs.Get("/", notificationController.GetNotifications)
	notifs.Put("/:id/read", notificationController.MarkNotificationRead)
	notifs.Put("/read-all", notificationController.MarkAllNotificationsRead)

	// WebSocket
	app.Use("/ws", middleware.JWTMiddleware(), wsController.UpgradeRequired)
	app.Get("/ws", wsController.Handle())
}
