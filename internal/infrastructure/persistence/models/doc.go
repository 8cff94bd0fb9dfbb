// Package models contains GORM persistence models for the ledger tables.
// Domain entities stay free of ORM tags; each model converts with ToDomain
// and a ...ModelFromDomain constructor.
//
// Tables:
//   - billing_config: the configuration singleton (id = 1)
//   - customers: subscribers plus the denormalized debt summary columns
//   - installments: unique on (customer_id, period_year, period_month)
//   - payments: unique receipt_number
//   - payment_applications: unique payment_id and installment_id
//   - notification_log: unique on (customer_id, kind, due_date)
package models
