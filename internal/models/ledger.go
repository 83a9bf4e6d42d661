package models

import (
	"time"
)

type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

type Account struct {
	ID        string      `json:"account_id" gorm:"primaryKey"`
	CompanyID string      `json:"company_id" gorm:"index;not null"`
	Code      string      `json:"code" gorm:"not null"`
	Name      string      `json:"name" gorm:"not null"`
	Type      AccountType `json:"type" gorm:"not null"`
	CreatedAt time.Time   `json:"created_at"`
}

type JournalEntry struct {
	ID        string    `json:"entry_id" gorm:"primaryKey"`
	CompanyID string    `json:"company_id" gorm:"index;not null"`
	EntryDate time.Time `json:"entry_date" gorm:"index;not null"`
	Memo      string    `json:"memo"`
	CreatedAt time.Time `json:"created_at"`
}

type JournalLine struct {
	ID        string  `json:"line_id" gorm:"primaryKey"`
	EntryID   string  `json:"entry_id" gorm:"index;not null"`
	AccountID string  `json:"account_id" gorm:"index;not null"`
	Debit     float64 `json:"debit"`
	Credit    float64 `json:"credit"`
}
