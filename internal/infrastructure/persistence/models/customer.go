package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kctmenswear/storefront/internal/domain/customer"
	"github.com/kctmenswear/storefront/internal/domain/identity"
)

// CustomerModel is the persistence model for the Customer entity.
type CustomerModel struct {
	BaseModel
	Email                 string          `gorm:"type:varchar(255);not null;uniqueIndex"`
	FirstName             string          `gorm:"type:varchar(100)"`
	LastName              string          `gorm:"type:varchar(100)"`
	Name                  string          `gorm:"type:varchar(255)"`
	Phone                 string          `gorm:"type:varchar(50)"`
	StripeCustomerID      string          `gorm:"type:varchar(255);index"`
	AcceptsEmailMarketing bool            `gorm:"not null;default:false"`
	TotalSpent            decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	CustomerTier          string          `gorm:"type:varchar(50);not null;default:'standard'"`
	VIPStatus             bool            `gorm:"column:vip_status;not null;default:false"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer.
func (m *CustomerModel) ToDomain() *customer.Customer {
	return &customer.Customer{
		BaseEntity:            m.BaseModel.ToDomain(),
		Email:                 m.Email,
		FirstName:             m.FirstName,
		LastName:              m.LastName,
		Name:                  m.Name,
		Phone:                 m.Phone,
		StripeCustomerID:      m.StripeCustomerID,
		AcceptsEmailMarketing: m.AcceptsEmailMarketing,
		TotalSpent:            m.TotalSpent,
		CustomerTier:          m.CustomerTier,
		VIPStatus:             m.VIPStatus,
	}
}

// FromDomain populates the persistence model from a domain Customer.
func (m *CustomerModel) FromDomain(c *customer.Customer) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Email = c.Email
	m.FirstName = c.FirstName
	m.LastName = c.LastName
	m.Name = c.Name
	m.Phone = c.Phone
	m.StripeCustomerID = c.StripeCustomerID
	m.AcceptsEmailMarketing = c.AcceptsEmailMarketing
	m.TotalSpent = c.TotalSpent
	m.CustomerTier = c.CustomerTier
	m.VIPStatus = c.VIPStatus
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer.
func CustomerModelFromDomain(c *customer.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// UserModel is the persistence model for the users auth mirror.
type UserModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key"`
	Email            string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User.
func (m *UserModel) ToDomain() *identity.User {
	return &identity.User{
		ID:               m.ID,
		Email:            m.Email,
		EmailConfirmedAt: m.EmailConfirmedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
