package models

import (
	"time"
)

// Billing interval types
const (
	IntervalDay   = "day"
	IntervalWeek  = "week"
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// Subscription statuses
const (
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusPaused   = "paused"
	SubscriptionStatusCanceled = "canceled"
)

// Invoice statuses
const (
	InvoiceStatusPending = "pending"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusFailed  = "failed"
	InvoiceStatusVoid    = "void"
)

// SubscriptionPlan defines a recurring price: amount charged every
// IntervalCount units of IntervalType.
type SubscriptionPlan struct {
	ID              string `gorm:"primarykey"`
	MerchantID      string `gorm:"index;not null"`
	Name            string `gorm:"not null"`
	Amount          int64  `gorm:"not null"`
	IntervalType    string `gorm:"not null"`
	IntervalCount   int    `gorm:"not null;default:1"`
	TrialPeriodDays int    `gorm:"not null;default:0"`
	Active          bool   `gorm:"default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Subscription tracks one customer's recurring billing state. Period fields
// are advanced exclusively by the renewal scheduler.
type Subscription struct {
	ID                 string `gorm:"primarykey"`
	PlanID             string `gorm:"index;not null"`
	MerchantID         string `gorm:"index;not null"`
	CustomerRef        string `gorm:"not null"`
	Status             string `gorm:"not null;index"`
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time `gorm:"index"`
	CancelAtPeriodEnd  bool      `gorm:"default:false"`
	CanceledAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SubscriptionInvoice covers one completed billing period. The
// (subscription, period start) pair is unique, so a period can never be
// invoiced twice no matter how many scheduler runs touch it.
type SubscriptionInvoice struct {
	ID             string    `gorm:"primarykey"`
	SubscriptionID string    `gorm:"not null;uniqueIndex:idx_invoice_sub_period"`
	MerchantID     string    `gorm:"index;not null"`
	Amount         int64     `gorm:"not null"`
	Status         string    `gorm:"not null;default:'pending'"`
	PeriodStart    time.Time `gorm:"uniqueIndex:idx_invoice_sub_period"`
	PeriodEnd      time.Time
	DueDate        time.Time
	AttemptCount   int `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
