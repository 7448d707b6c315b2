// internal/models/project.go
package models

import (
	"github.com/google/uuid"
)

type Project struct {
	BaseModel
	OwnerID        uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title          string    `json:"title" gorm:"size:255;not null"`
	Description    string    `json:"description" gorm:"type:text"`
	Category       string    `json:"category" gorm:"size:100;index"`
	TechStack      JSONB     `json:"tech_stack,omitempty" gorm:"type:jsonb"`
	Price          float64   `json:"price" gorm:"type:decimal(10,2);not null"`
	MonthlyRevenue float64   `json:"monthly_revenue" gorm:"type:decimal(10,2);default:0"`
	MonthlyProfit  float64   `json:"monthly_profit" gorm:"type:decimal(10,2);default:0"`
	IsForSale      bool      `json:"is_for_sale" gorm:"default:true;index"`

	Owner User `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}
