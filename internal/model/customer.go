package model

type CustomerGroup struct {
	ID   int64  `db:"customer_group_id"`
	Code string `db:"customer_group_code"`
}
