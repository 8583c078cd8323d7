// Package domain contains the appointment collaborator model consumed by
// the billing ledger. Scheduling itself lives outside this service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Modality distinguishes how a consultation is delivered; it also decides
// the settlement currency of the appointment's invoice.
type Modality string

const (
	ModalityInPerson Modality = "IN_PERSON"
	ModalityVirtual  Modality = "VIRTUAL"
)

// AppointmentStatus mirrors the scheduling collaborator's lifecycle.
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
)

// Appointment is the consultation an invoice bills for.
type Appointment struct {
	ID        snowflake.ID      `json:"id" gorm:"primaryKey"`
	Date      time.Time         `json:"date" gorm:"not null;index"`
	Duration  int               `json:"duration" gorm:"not null"` // minutes
	Modality  Modality          `json:"modality" gorm:"type:text;not null"`
	Status    AppointmentStatus `json:"status" gorm:"type:text;not null;default:'PENDING'"`
	PatientID snowflake.ID      `json:"patient_id" gorm:"not null;index"`
	DoctorID  snowflake.ID      `json:"doctor_id" gorm:"not null;index"`
	Price     decimal.Decimal   `json:"price" gorm:"type:numeric(12,2);not null"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time         `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Appointment) TableName() string { return "appointments" }

// Billable reports whether the appointment has reached a status that
// allows invoicing.
func (a Appointment) Billable() bool {
	return a.Status == AppointmentStatusConfirmed || a.Status == AppointmentStatusCompleted
}
