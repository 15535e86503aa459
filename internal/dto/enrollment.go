package dto

// SaveEnrollmentDraftRequest is the student's course selection for one semester.
type SaveEnrollmentDraftRequest struct {
	AcademicYear string   `json:"academicYear" validate:"required"`
	Semester     int      `json:"semester" validate:"required,min=1"`
	CourseCodes  []string `json:"courseCodes" validate:"omitempty,max=50,dive,required,max=32"`
}

// HOD decision actions.
const (
	HODActionApprove = "approve"
	HODActionReject  = "reject"
)

// HODDecisionRequest applies one decision to a batch of pending requests.
type HODDecisionRequest struct {
	RequestIDs []string `json:"requestIds" validate:"required,min=1,max=200,dive,required"`
	Action     string   `json:"action" validate:"required,oneof=approve reject"`
	Reason     string   `json:"reason" validate:"max=500"`
}

// HODDecisionResult reports how many of the requested ids were transitioned.
type HODDecisionResult struct {
	Requested    int      `json:"requested"`
	Processed    int      `json:"processed"`
	ProcessedIDs []string `json:"processedIds"`
}

// EnrollmentListQuery captures list query parameters.
type EnrollmentListQuery struct {
	AcademicYear string `form:"academicYear"`
	Semester     int    `form:"semester"`
	Status       string `form:"status"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}
