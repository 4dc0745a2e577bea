package procurement

import (
	"time"

	"github.com/odyssey-erp/procureflow/internal/attachments"
	"github.com/odyssey-erp/procureflow/internal/costing"
	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/workflow"
)

// PO form modes.
type POMode string

const (
	POModeCreate POMode = "create"
	POModeRevise POMode = "revise"
)

// Sequence series names, also used as metric labels.
const (
	seriesPO     = "po"
	seriesIndent = "indent"
	seriesLift   = "lift"
	seriesIssue  = "issue"
)

// QueueView lists one screen: every record pending at its stage and a page
// of the ones already completed.
type QueueView struct {
	Screen      workflow.Screen   `json:"screen"`
	Pending     []workflow.Record `json:"pending"`
	History     []workflow.Record `json:"history"`
	HistoryPage shared.Pagination `json:"history_page"`
}

// CompleteInput completes a screen's stage for every row sharing Key.
type CompleteInput struct {
	Screen  string                      `json:"-" validate:"required"`
	Key     string                      `json:"-" validate:"required"`
	Payload map[string]any              `json:"payload"`
	Files   map[string]attachments.File `json:"files"`
}

// CompleteResult reports the records after the transition.
type CompleteResult struct {
	Screen  string            `json:"screen"`
	Key     string            `json:"key"`
	Records []workflow.Record `json:"records"`
	Planned []int             `json:"planned"`
}

// IndentLine is one product requested on an indent.
type IndentLine struct {
	ProductName    string  `json:"productName" validate:"required"`
	GroupHead      string  `json:"groupHead"`
	Quantity       float64 `json:"quantity" validate:"gt=0"`
	UOM            string  `json:"uom" validate:"required"`
	Specifications string  `json:"specifications"`
}

// CreateIndentInput raises a purchase request.
type CreateIndentInput struct {
	IndenterName string            `json:"indenterName" validate:"required"`
	Department   string            `json:"department" validate:"required"`
	AreaOfUse    string            `json:"areaOfUse"`
	IndentType   string            `json:"indentType"`
	Products     []IndentLine      `json:"products" validate:"required,min=1,dive"`
	Attachment   *attachments.File `json:"attachment"`
}

// Indent is a created indent.
type Indent struct {
	IndentNumber string            `json:"indentNumber"`
	Records      []workflow.Record `json:"records"`
}

// POLineInput prices one indent on a purchase order. Zero quantity and rate
// fall back to the indent's approved values.
type POLineInput struct {
	IndentNumber    string  `json:"indentNumber" validate:"required"`
	Quantity        float64 `json:"quantity" validate:"gte=0"`
	Unit            string  `json:"unit"`
	Rate            float64 `json:"rate" validate:"gte=0"`
	DiscountPercent float64 `json:"discountPercent" validate:"gte=0,lte=100"`
	GSTPercent      float64 `json:"gstPercent" validate:"gte=0,lte=100"`
}

// CreatePOInput creates or revises a purchase order. Document is the
// rendered PO file; a blank name is replaced with one derived from the PO
// number.
type CreatePOInput struct {
	Mode            POMode           `json:"mode"`
	PONumber        string           `json:"poNumber"`
	PODate          time.Time        `json:"poDate"`
	SupplierName    string           `json:"supplierName" validate:"required"`
	SupplierAddress string           `json:"supplierAddress"`
	GSTIN           string           `json:"gstin"`
	PreparedBy      string           `json:"preparedBy"`
	ApprovedBy      string           `json:"approvedBy"`
	QuotationNumber string           `json:"quotationNumber"`
	QuotationDate   time.Time        `json:"quotationDate"`
	EnquiryNumber   string           `json:"enquiryNumber"`
	EnquiryDate     time.Time        `json:"enquiryDate"`
	DeliveryDate    time.Time        `json:"deliveryDate"`
	Description     string           `json:"description"`
	PaymentTerms    string           `json:"paymentTerms"`
	NumberOfDays    int              `json:"numberOfDays" validate:"gte=0"`
	Terms           []string         `json:"terms" validate:"max=10"`
	Lines           []POLineInput    `json:"lines" validate:"required,min=1,dive"`
	Document        attachments.File `json:"document" validate:"-"`
}

// POLine is a priced line as written to PO MASTER.
type POLine struct {
	IndentNumber string           `json:"indentNumber"`
	Product      string           `json:"product"`
	Unit         string           `json:"unit"`
	Item         costing.LineItem `json:"item"`
	Amount       float64          `json:"amount"`
}

// PurchaseOrder is a created or revised order.
type PurchaseOrder struct {
	Number      string         `json:"poNumber"`
	Supplier    string         `json:"supplier"`
	Email       string         `json:"email"`
	DocumentURL string         `json:"documentUrl"`
	Totals      costing.Totals `json:"totals"`
	Lines       []POLine       `json:"lines"`
}

// POSummary is one entry of the revise picker.
type POSummary struct {
	PONumber      string  `json:"poNumber"`
	PartyName     string  `json:"partyName"`
	TotalPOAmount float64 `json:"totalPoAmount"`
	Timestamp     string  `json:"timestamp"`
}

// CreateLiftInput books material lifted against an ordered indent.
type CreateLiftInput struct {
	IndentNumber          string            `json:"indentNumber" validate:"required"`
	Quantity              float64           `json:"quantity" validate:"gt=0"`
	VendorName            string            `json:"vendorName"`
	BillStatus            string            `json:"billStatus"`
	BillNo                string            `json:"billNo"`
	LeadTime              float64           `json:"leadTime" validate:"gte=0"`
	TypeOfBill            string            `json:"typeOfBill"`
	BillAmount            float64           `json:"billAmount" validate:"gte=0"`
	DiscountAmount        float64           `json:"discountAmount" validate:"gte=0"`
	PaymentType           string            `json:"paymentType"`
	AdvanceAmount         float64           `json:"advanceAmount" validate:"gte=0"`
	TransportationInclude string            `json:"transportationInclude"`
	TransporterName       string            `json:"transporterName"`
	Amount                float64           `json:"amount" validate:"gte=0"`
	PhotoOfBill           *attachments.File `json:"photoOfBill"`
}

// LiftBalance tracks how much of an indent's approved quantity is lifted.
type LiftBalance struct {
	IndentNumber string  `json:"indentNumber"`
	Approved     float64 `json:"approved"`
	Lifted       float64 `json:"lifted"`
	Pending      float64 `json:"pending"`
}

// Lift is a created STORE IN row.
type Lift struct {
	LiftNumber   string      `json:"liftNumber"`
	IndentNumber string      `json:"indentNumber"`
	Quantity     float64     `json:"quantity"`
	Balance      LiftBalance `json:"balance"`
	IndentClosed bool        `json:"indentClosed"`
}

// IssueLine is one product issued from store.
type IssueLine struct {
	ProductName string  `json:"productName" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UOM         string  `json:"uom"`
	Department  string  `json:"department"`
	IssueTo     string  `json:"issueTo"`
}

// CreateIssueInput requests a store issue. All products share one number.
type CreateIssueInput struct {
	Products []IssueLine `json:"products" validate:"required,min=1,dive"`
}

// Issue is a created store issue.
type Issue struct {
	IssueNo string `json:"issueNo"`
	Lines   int    `json:"lines"`
}
