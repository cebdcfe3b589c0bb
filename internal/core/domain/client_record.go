package domain

// PaymentSlots is the number of paymentN/paymentNDate pairs carried by a record.
const PaymentSlots = 7

// CheckboxYes is the only truthy value a checkbox field can hold.
const CheckboxYes = "Yes"

// Field names as they appear on the wire.
const (
	FieldID                 = "id"
	FieldClientName         = "clientName"
	FieldClosedBy           = "closedBy"
	FieldCompanyName        = "companyName"
	FieldServiceType        = "serviceType"
	FieldContractTotals     = "contractTotals"
	FieldTotalPayments      = "totalPayments"
	FieldFuturePayments     = "futurePayments"
	FieldDateWhenFullyPaid  = "dateWhenFullyPaid"
	FieldDateWhenWrittenOff = "dateWhenWrittenOff"
	FieldWrittenOff         = "writtenOff"
	FieldAfterResult        = "afterResult"
	FieldCreatedAt          = "createdAt"
	FieldNotes              = "notes"
)

// FieldKind describes how a field is parsed and canonicalized.
type FieldKind string

const (
	KindID        FieldKind = "ID"
	KindText      FieldKind = "TEXT"
	KindMoney     FieldKind = "MONEY"
	KindDate      FieldKind = "DATE"
	KindCheckbox  FieldKind = "CHECKBOX"
	KindTimestamp FieldKind = "TIMESTAMP"
)

// ClientRecord is one client payment contract. An empty string means the field is absent.
type ClientRecord struct {
	ID                 string `json:"id" db:"id"`
	ClientName         string `json:"clientName" db:"client_name"`
	ClosedBy           string `json:"closedBy" db:"closed_by"`
	CompanyName        string `json:"companyName" db:"company_name"`
	ServiceType        string `json:"serviceType" db:"service_type"`
	ContractTotals     string `json:"contractTotals" db:"contract_totals"`
	Payment1           string `json:"payment1" db:"payment1"`
	Payment1Date       string `json:"payment1Date" db:"payment1_date"`
	Payment2           string `json:"payment2" db:"payment2"`
	Payment2Date       string `json:"payment2Date" db:"payment2_date"`
	Payment3           string `json:"payment3" db:"payment3"`
	Payment3Date       string `json:"payment3Date" db:"payment3_date"`
	Payment4           string `json:"payment4" db:"payment4"`
	Payment4Date       string `json:"payment4Date" db:"payment4_date"`
	Payment5           string `json:"payment5" db:"payment5"`
	Payment5Date       string `json:"payment5Date" db:"payment5_date"`
	Payment6           string `json:"payment6" db:"payment6"`
	Payment6Date       string `json:"payment6Date" db:"payment6_date"`
	Payment7           string `json:"payment7" db:"payment7"`
	Payment7Date       string `json:"payment7Date" db:"payment7_date"`
	TotalPayments      string `json:"totalPayments" db:"total_payments"`
	FuturePayments     string `json:"futurePayments" db:"future_payments"`
	DateWhenFullyPaid  string `json:"dateWhenFullyPaid" db:"date_when_fully_paid"`
	DateWhenWrittenOff string `json:"dateWhenWrittenOff" db:"date_when_written_off"`
	WrittenOff         string `json:"writtenOff" db:"written_off"`
	AfterResult        string `json:"afterResult" db:"after_result"`
	CreatedAt          string `json:"createdAt" db:"created_at"`
	Notes              string `json:"notes" db:"notes"`
}

// IsWrittenOff reports whether the record is flagged as written off.
func (r ClientRecord) IsWrittenOff() bool {
	return r.WrittenOff == CheckboxYes
}

// Payment returns the amount and date of slot n (1-based). Out-of-range slots are empty.
func (r ClientRecord) Payment(n int) (amount, date string) {
	switch n {
	case 1:
		return r.Payment1, r.Payment1Date
	case 2:
		return r.Payment2, r.Payment2Date
	case 3:
		return r.Payment3, r.Payment3Date
	case 4:
		return r.Payment4, r.Payment4Date
	case 5:
		return r.Payment5, r.Payment5Date
	case 6:
		return r.Payment6, r.Payment6Date
	case 7:
		return r.Payment7, r.Payment7Date
	}
	return "", ""
}

// Get returns the value of a wire field. Unknown names return false.
func (r *ClientRecord) Get(field string) (string, bool) {
	p := r.fieldPtr(field)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set assigns a wire field. Unknown names return false.
func (r *ClientRecord) Set(field, value string) bool {
	p := r.fieldPtr(field)
	if p == nil {
		return false
	}
	*p = value
	return true
}

func (r *ClientRecord) fieldPtr(field string) *string {
	switch field {
	case FieldID:
		return &r.ID
	case FieldClientName:
		return &r.ClientName
	case FieldClosedBy:
		return &r.ClosedBy
	case FieldCompanyName:
		return &r.CompanyName
	case FieldServiceType:
		return &r.ServiceType
	case FieldContractTotals:
		return &r.ContractTotals
	case "payment1":
		return &r.Payment1
	case "payment1Date":
		return &r.Payment1Date
	case "payment2":
		return &r.Payment2
	case "payment2Date":
		return &r.Payment2Date
	case "payment3":
		return &r.Payment3
	case "payment3Date":
		return &r.Payment3Date
	case "payment4":
		return &r.Payment4
	case "payment4Date":
		return &r.Payment4Date
	case "payment5":
		return &r.Payment5
	case "payment5Date":
		return &r.Payment5Date
	case "payment6":
		return &r.Payment6
	case "payment6Date":
		return &r.Payment6Date
	case "payment7":
		return &r.Payment7
	case "payment7Date":
		return &r.Payment7Date
	case FieldTotalPayments:
		return &r.TotalPayments
	case FieldFuturePayments:
		return &r.FuturePayments
	case FieldDateWhenFullyPaid:
		return &r.DateWhenFullyPaid
	case FieldDateWhenWrittenOff:
		return &r.DateWhenWrittenOff
	case FieldWrittenOff:
		return &r.WrittenOff
	case FieldAfterResult:
		return &r.AfterResult
	case FieldCreatedAt:
		return &r.CreatedAt
	case FieldNotes:
		return &r.Notes
	}
	return nil
}

// RecordFields is the allow-list of wire fields, in display order, with their kinds.
var RecordFields = []struct {
	Name string
	Kind FieldKind
}{
	{FieldID, KindID},
	{FieldClientName, KindText},
	{FieldClosedBy, KindText},
	{FieldCompanyName, KindText},
	{FieldServiceType, KindText},
	{FieldContractTotals, KindMoney},
	{"payment1", KindMoney},
	{"payment1Date", KindDate},
	{"payment2", KindMoney},
	{"payment2Date", KindDate},
	{"payment3", KindMoney},
	{"payment3Date", KindDate},
	{"payment4", KindMoney},
	{"payment4Date", KindDate},
	{"payment5", KindMoney},
	{"payment5Date", KindDate},
	{"payment6", KindMoney},
	{"payment6Date", KindDate},
	{"payment7", KindMoney},
	{"payment7Date", KindDate},
	{FieldTotalPayments, KindMoney},
	{FieldFuturePayments, KindMoney},
	{FieldDateWhenFullyPaid, KindDate},
	{FieldDateWhenWrittenOff, KindDate},
	{FieldWrittenOff, KindCheckbox},
	{FieldAfterResult, KindCheckbox},
	{FieldCreatedAt, KindTimestamp},
	{FieldNotes, KindText},
}

// FieldKindOf returns the kind of an allow-listed field.
func FieldKindOf(field string) (FieldKind, bool) {
	k, ok := fieldKinds[field]
	return k, ok
}

var fieldKinds = func() map[string]FieldKind {
	m := make(map[string]FieldKind, len(RecordFields))
	for _, f := range RecordFields {
		m[f.Name] = f.Kind
	}
	return m
}()
