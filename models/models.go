package models

import (
	"time"

	"Qurbani-app-backend/hissa"
)

// ErrorResponse represents a generic error structure for API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UserRole enum (defined here as the canonical type)
type UserRole string

const (
	UserRoleAdmin      UserRole = "admin"
	UserRoleSupervisor UserRole = "supervisor"
	UserRoleUser       UserRole = "user"
)

func (r UserRole) Valid() bool {
	return r == UserRoleAdmin || r == UserRoleSupervisor || r == UserRoleUser
}

// Main Models
type Zone struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Incharge  string    `json:"incharge"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Publish   bool      `json:"publish"`
	CreatedAt time.Time `json:"created_at"`
}

type Area struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Incharge     string    `json:"incharge"`
	ZoneName     string    `json:"zone_name"`
	ZoneIncharge string    `json:"zone_incharge"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	Publish      bool      `json:"publish"`
	CreatedAt    time.Time `json:"created_at"`

	// Current incharge of the zone, which may differ from the copy taken
	// when the area was saved.
	ZoneInchargeOriginal *string `json:"zone_incharge_original,omitempty"`
}

type User struct {
	ID                int64                   `json:"id"`
	Name              string                  `json:"name"`
	Phone             string                  `json:"phone"`
	Email             string                  `json:"email"`
	PasswordHash      string                  `json:"-"`
	Pfp               *string                 `json:"pfp"`
	AreaName          string                  `json:"area_name"`
	AreaIncharge      string                  `json:"area_incharge"`
	ZoneName          string                  `json:"zone_name"`
	ZoneIncharge      string                  `json:"zone_incharge"`
	RegionsInchargeOf hissa.RegionsInchargeOf `json:"regions_incharge_of"`
	RateR1            float64                 `json:"rate_r1"`
	RateR2            float64                 `json:"rate_r2"`
	Publish           bool                    `json:"publish"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// Submitter is the hissa submitter context of a collector.
func (u User) Submitter() hissa.Submitter {
	return hissa.Submitter{
		Name:         u.Name,
		AreaName:     u.AreaName,
		AreaIncharge: u.AreaIncharge,
		ZoneName:     u.ZoneName,
		ZoneIncharge: u.ZoneIncharge,
		InchargeOf:   u.RegionsInchargeOf,
	}
}

// Staff is an admin or supervisor account.
type Staff struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Customer struct {
	ID            int64        `json:"id"`
	Receipt       string       `json:"receipt"`
	Name          string       `json:"name"`
	Phone         *string      `json:"phone"`
	Email         *string      `json:"email"`
	Type          hissa.Type   `json:"type"`
	Region        hissa.Region `json:"region"`
	UserName      string       `json:"user_name"`
	AreaName      string       `json:"area_name"`
	AreaIncharge  string       `json:"area_incharge"`
	ZoneName      string       `json:"zone_name"`
	ZoneIncharge  string       `json:"zone_incharge"`
	Status        bool         `json:"status"`
	PaymentStatus bool         `json:"payment_status"`
	AmountPaid    float64      `json:"amount_paid"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type Receipt struct {
	ID           int64     `json:"id"`
	UserName     string    `json:"user_name"`
	Phone        *string   `json:"phone"`
	Email        *string   `json:"email"`
	PaidBy       string    `json:"paid_by"`
	CollectedBy  string    `json:"collected_by"`
	Img          string    `json:"img"`
	Rate         float64   `json:"rate"`
	Hissa        int       `json:"hissa"`
	TotalAmt     float64   `json:"total_amt"`
	Purpose      string    `json:"purpose"`
	AreaName     string    `json:"area_name"`
	AreaIncharge string    `json:"area_incharge"`
	ZoneName     string    `json:"zone_name"`
	ZoneIncharge string    `json:"zone_incharge"`
	CreatedAt    time.Time `json:"created_at"`

	// Number of customers marked paid by this receipt; set on create only.
	CustomersMarkedPaid *int `json:"customers_marked_paid,omitempty"`
}

type Feedback struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Feedback  string    `json:"feedback"`
	CreatedAt time.Time `json:"created_at"`
}

type Costs struct {
	MumbaiCost      float64 `json:"mumbai_cost"`
	OutOfMumbaiCost float64 `json:"out_of_mumbai_cost"`
}

type LockStatus struct {
	LockStatus bool `json:"lock_status"`
}

type Dashboard struct {
	AnimalsOutMumbai       int64   `json:"animals_out_mumbai"`
	SharesOutMumbai        int64   `json:"shares_out_mumbai"`
	TotalAmountOutMumbai   float64 `json:"total_amount_out_mumbai"`
	PaidOutMumbai          int64   `json:"paid_out_mumbai"`
	PaidAmountOutMumbai    float64 `json:"paid_amount_out_mumbai"`
	PendingOutMumbai       int64   `json:"pending_out_mumbai"`
	PendingAmountOutMumbai float64 `json:"pending_amount_out_mumbai"`
	AnimalsMumbai          int64   `json:"animals_mumbai"`
	SharesMumbai           int64   `json:"shares_mumbai"`
	TotalAmountMumbai      float64 `json:"total_amount_mumbai"`
	PaidMumbai             int64   `json:"paid_mumbai"`
	PaidAmountMumbai       float64 `json:"paid_amount_mumbai"`
	PendingMumbai          int64   `json:"pending_mumbai"`
	PendingAmountMumbai    float64 `json:"pending_amount_mumbai"`
}

type UserSummary struct {
	UserID                 int64                   `json:"user_id"`
	UserName               string                  `json:"user_name"`
	AreaName               string                  `json:"area_name"`
	ZoneName               string                  `json:"zone_name"`
	Region                 hissa.RegionsInchargeOf `json:"region"`
	SharesMumbai           int64                   `json:"shares_mumbai"`
	SharesOutMumbai        int64                   `json:"shares_out_mumbai"`
	PaidAmountMumbai       float64                 `json:"paid_amount_mumbai"`
	PaidAmountOutMumbai    float64                 `json:"paid_amount_out_mumbai"`
	PendingAmountMumbai    float64                 `json:"pending_amount_mumbai"`
	PendingAmountOutMumbai float64                 `json:"pending_amount_out_mumbai"`
}

// Request DTOs (Data Transfer Objects)

type LoginRequest struct {
	Auth       UserRole `json:"auth" validate:"required,oneof=admin supervisor user"`
	Identifier string   `json:"identifier" validate:"required"`
	Password   string   `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken  string     `json:"access_token"`
	ExpiresIn    int        `json:"expires_in"`
	RefreshToken *string    `json:"refresh_token,omitempty"`
	UserType     UserRole   `json:"userType"`
	User         any        `json:"user"`
	Customers    []Customer `json:"customers,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type CreateZoneRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Incharge string `json:"incharge" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"required,max=20"`
	Email    string `json:"email" validate:"required,email"`
	Publish  *bool  `json:"publish"`
}

type UpdateZoneRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=120"`
	Incharge *string `json:"incharge" validate:"omitempty,min=1,max=120"`
	Phone    *string `json:"phone" validate:"omitempty,min=1,max=20"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Publish  *bool   `json:"publish"`
}

type CreateAreaRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Incharge string `json:"incharge" validate:"required,max=120"`
	ZoneName string `json:"zone_name" validate:"required"`
	Phone    string `json:"phone" validate:"required,max=20"`
	Email    string `json:"email" validate:"required,email"`
	Publish  *bool  `json:"publish"`
}

type UpdateAreaRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=120"`
	Incharge *string `json:"incharge" validate:"omitempty,min=1,max=120"`
	ZoneName *string `json:"zone_name" validate:"omitempty,min=1"`
	Phone    *string `json:"phone" validate:"omitempty,min=1,max=20"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Publish  *bool   `json:"publish"`
}

type CreateUserRequest struct {
	Name              string                   `json:"name" validate:"required,max=120"`
	Phone             string                   `json:"phone" validate:"required,max=20"`
	Email             string                   `json:"email" validate:"required,email"`
	Password          string                   `json:"password" validate:"required,min=6"`
	Pfp               *string                  `json:"pfp" validate:"omitempty,url"`
	AreaName          string                   `json:"area_name"`
	AreaIncharge      string                   `json:"area_incharge"`
	ZoneName          string                   `json:"zone_name"`
	ZoneIncharge      string                   `json:"zone_incharge"`
	RegionsInchargeOf *hissa.RegionsInchargeOf `json:"regions_incharge_of" validate:"omitempty,min=0,max=2"`
	RateR1            *float64                 `json:"rate_r1" validate:"omitempty,gte=0"`
	RateR2            *float64                 `json:"rate_r2" validate:"omitempty,gte=0"`
	Publish           *bool                    `json:"publish"`
}

type UpdateUserRequest struct {
	Name              *string                  `json:"name" validate:"omitempty,min=1,max=120"`
	Phone             *string                  `json:"phone" validate:"omitempty,min=1,max=20"`
	Email             *string                  `json:"email" validate:"omitempty,email"`
	Password          *string                  `json:"password"`
	Pfp               *string                  `json:"pfp"`
	AreaName          *string                  `json:"area_name"`
	AreaIncharge      *string                  `json:"area_incharge"`
	ZoneName          *string                  `json:"zone_name"`
	ZoneIncharge      *string                  `json:"zone_incharge"`
	RegionsInchargeOf *hissa.RegionsInchargeOf `json:"regions_incharge_of" validate:"omitempty,min=0,max=2"`
	RateR1            *float64                 `json:"rate_r1" validate:"omitempty,gte=0"`
	RateR2            *float64                 `json:"rate_r2" validate:"omitempty,gte=0"`
	Publish           *bool                    `json:"publish"`
}

type CreateCustomerRequest struct {
	Receipt       string        `json:"receipt" validate:"required"`
	Name          string        `json:"name" validate:"required,max=250"`
	Phone         *string       `json:"phone"`
	Email         *string       `json:"email" validate:"omitempty,email"`
	Type          *hissa.Type   `json:"type" validate:"omitempty,min=1,max=3"`
	Region        *hissa.Region `json:"region" validate:"omitempty,min=1,max=2"`
	UserName      string        `json:"user_name" validate:"required"`
	AreaName      string        `json:"area_name" validate:"required"`
	AreaIncharge  string        `json:"area_incharge"`
	ZoneName      string        `json:"zone_name" validate:"required"`
	ZoneIncharge  string        `json:"zone_incharge"`
	Status        bool          `json:"status"`
	PaymentStatus bool          `json:"payment_status"`
	AmountPaid    float64       `json:"amount_paid" validate:"gte=0"`
}

type UpdateCustomerRequest struct {
	Receipt       *string       `json:"receipt" validate:"omitempty,min=1"`
	Name          *string       `json:"name" validate:"omitempty,min=1,max=250"`
	Phone         *string       `json:"phone"`
	Email         *string       `json:"email" validate:"omitempty,email"`
	Type          *hissa.Type   `json:"type" validate:"omitempty,min=1,max=3"`
	Region        *hissa.Region `json:"region" validate:"omitempty,min=1,max=2"`
	UserName      *string       `json:"user_name" validate:"omitempty,min=1"`
	AreaName      *string       `json:"area_name" validate:"omitempty,min=1"`
	AreaIncharge  *string       `json:"area_incharge"`
	ZoneName      *string       `json:"zone_name" validate:"omitempty,min=1"`
	ZoneIncharge  *string       `json:"zone_incharge"`
	Status        *bool         `json:"status"`
	PaymentStatus *bool         `json:"payment_status"`
	AmountPaid    *float64      `json:"amount_paid" validate:"omitempty,gte=0"`
}

type CreateReceiptRequest struct {
	UserName     string  `json:"user_name" validate:"required"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email" validate:"omitempty,email"`
	PaidBy       string  `json:"paid_by" validate:"required"`
	CollectedBy  string  `json:"collected_by" validate:"required"`
	Img          string  `json:"img" validate:"required"`
	Rate         float64 `json:"rate" validate:"gt=0"`
	Hissa        int     `json:"hissa" validate:"gt=0"`
	Purpose      string  `json:"purpose"`
	AreaName     string  `json:"area_name" validate:"required"`
	AreaIncharge string  `json:"area_incharge" validate:"required"`
	ZoneName     string  `json:"zone_name" validate:"required"`
	ZoneIncharge string  `json:"zone_incharge" validate:"required"`
}

type CreateFeedbackRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Feedback string `json:"feedback" validate:"required,max=5000"`
}

type UpdateLockRequest struct {
	LockStatus *bool `json:"lock_status" validate:"required"`
}

type UpdateCostsRequest struct {
	MumbaiCost      *float64 `json:"mumbai_cost" validate:"required,gte=0"`
	OutOfMumbaiCost *float64 `json:"out_of_mumbai_cost" validate:"required,gte=0"`
}

// Hissa share allocation DTOs. The client holds the slot state and sends it
// with every operation.

type ShareState struct {
	SubmissionID  string       `json:"submission_id"`
	Slots         hissa.Slots  `json:"slots"`
	TotalWeight   int          `json:"total_weight"`
	Region        hissa.Region `json:"region,omitempty"`
	Error         string       `json:"error,omitempty"`
	CreatedCount  int          `json:"created_count,omitempty"`
	PartialFailed bool         `json:"partial_failed,omitempty"`
}

type SetShareTypeRequest struct {
	Slots  hissa.Slots `json:"slots"`
	SlotID int         `json:"slot_id" validate:"min=1,max=7"`
	Type   hissa.Type  `json:"type" validate:"min=1,max=3"`
}

type SetShareTextRequest struct {
	Slots  hissa.Slots `json:"slots"`
	SlotID int         `json:"slot_id" validate:"min=1,max=7"`
	Text   string      `json:"text"`
}

type ClearShareRequest struct {
	Slots  hissa.Slots `json:"slots"`
	SlotID int         `json:"slot_id" validate:"min=1,max=7"`
}

type SubmitSharesRequest struct {
	SubmissionID  string       `json:"submission_id" validate:"omitempty,uuid"`
	Slots         hissa.Slots  `json:"slots"`
	ReceiptNumber string       `json:"receipt_number"`
	MobileNumber  string       `json:"mobile_number" validate:"omitempty,max=20"`
	Region        hissa.Region `json:"region"`
}
