package rbac

const (
	PermAttemptCreate  = "attempt:create"
	PermAttemptSave    = "attempt:save"
	PermAttemptSubmit  = "attempt:submit"
	PermAttemptViewOwn = "attempt:view-own"
	PermAttemptViewAll = "attempt:view-all"
	PermAttemptPreview = "attempt:preview"
	PermReportViewOwn  = "report:view-own"
	PermReportViewAll  = "report:view-all"
	PermQuestionManage = "question:manage"
	PermSettingsView   = "settings:view"
	PermSettingsManage = "settings:manage"
	PermExaminersView  = "examiners:view"
	PermAdminsCreate   = "admins:create"
	PermDashboardView  = "dashboard:view"
	PermPasswordChange = "user:change_password"
	PermProfileViewOwn = "profile:view-own"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	"examiner": {
		PermAttemptCreate,
		PermAttemptSave,
		PermAttemptSubmit,
		PermAttemptViewOwn,
		PermReportViewOwn,
		PermSettingsView,
		PermPasswordChange,
		PermProfileViewOwn,
	},
	"admin": {
		"*", // everything
	},
}
