package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{}, &Sequence{}, &IdempotencyKey{},
		&Customer{}, &Supplier{}, &Product{},
		&Part{}, &PartBatch{},
		&PurchaseOrder{}, &PurchaseOrderItem{},
		&Service{}, &FieldTemplate{},
		&Invoice{}, &InvoiceItem{}, &Payment{},
		&CreditNote{}, &CreditNoteItem{},
		&RepairJob{}, &RepairJobPart{},
	}
}
