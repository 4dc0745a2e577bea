package sheets

import "strings"

// Vendor is a supplier listed on the MASTER sheet.
type Vendor struct {
	Name    string `json:"vendorName"`
	GSTIN   string `json:"gstin"`
	Address string `json:"address"`
	Email   string `json:"email"`
}

// MasterData is the decoded MASTER sheet: option lists for the screens plus
// the company profile printed on purchase orders.
type MasterData struct {
	Vendors            []Vendor            `json:"vendors"`
	PaymentTerms       []string            `json:"paymentTerms"`
	Departments        []string            `json:"departments"`
	GroupHeads         map[string][]string `json:"groupHeads"`
	CompanyName        string              `json:"companyName"`
	CompanyAddress     string              `json:"companyAddress"`
	CompanyGSTIN       string              `json:"companyGstin"`
	CompanyPhone       string              `json:"companyPhone"`
	BillingAddress     string              `json:"billingAddress"`
	CompanyPAN         string              `json:"companyPan"`
	DestinationAddress string              `json:"destinationAddress"`
	DefaultTerms       []string            `json:"defaultTerms"`
}

// DecodeMaster folds MASTER rows into MasterData. Every column is a list read
// top to bottom; blank cells are skipped and company fields take the first
// non-blank value.
func DecodeMaster(rows []Row) MasterData {
	out := MasterData{GroupHeads: make(map[string][]string)}
	seenTerm := map[string]bool{}
	seenDept := map[string]bool{}
	for _, row := range rows {
		if name := strings.TrimSpace(row.String("vendorName")); name != "" {
			out.Vendors = append(out.Vendors, Vendor{
				Name:    name,
				GSTIN:   strings.TrimSpace(row.String("vendorGstin")),
				Address: strings.TrimSpace(row.String("vendorAddress")),
				Email:   strings.TrimSpace(row.String("vendorEmail")),
			})
		}
		if term := strings.TrimSpace(row.String("paymentTerm")); term != "" && !seenTerm[term] {
			seenTerm[term] = true
			out.PaymentTerms = append(out.PaymentTerms, term)
		}
		if dept := strings.TrimSpace(row.String("department")); dept != "" && !seenDept[dept] {
			seenDept[dept] = true
			out.Departments = append(out.Departments, dept)
		}
		if head := strings.TrimSpace(row.String("groupHead")); head != "" {
			item := strings.TrimSpace(row.String("item"))
			if _, ok := out.GroupHeads[head]; !ok {
				out.GroupHeads[head] = []string{}
			}
			if item != "" {
				out.GroupHeads[head] = append(out.GroupHeads[head], item)
			}
		}
		if term := strings.TrimSpace(row.String("defaultTerm")); term != "" {
			out.DefaultTerms = append(out.DefaultTerms, term)
		}
		firstNonBlank(&out.CompanyName, row.String("companyName"))
		firstNonBlank(&out.CompanyAddress, row.String("companyAddress"))
		firstNonBlank(&out.CompanyGSTIN, row.String("companyGstin"))
		firstNonBlank(&out.CompanyPhone, row.String("companyPhone"))
		firstNonBlank(&out.BillingAddress, row.String("billingAddress"))
		firstNonBlank(&out.CompanyPAN, row.String("companyPan"))
		firstNonBlank(&out.DestinationAddress, row.String("destinationAddress"))
	}
	return out
}

func firstNonBlank(dst *string, value string) {
	if *dst != "" {
		return
	}
	*dst = strings.TrimSpace(value)
}

// Vendor looks up a vendor by name.
func (m MasterData) Vendor(name string) (Vendor, bool) {
	for _, v := range m.Vendors {
		if v.Name == name {
			return v, true
		}
	}
	return Vendor{}, false
}

// VendorEmail returns the email registered for the vendor, "" when unknown.
func (m MasterData) VendorEmail(name string) string {
	v, _ := m.Vendor(name)
	return v.Email
}
