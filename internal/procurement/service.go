package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/procureflow/internal/attachments"
	"github.com/odyssey-erp/procureflow/internal/costing"
	"github.com/odyssey-erp/procureflow/internal/numbering"
	"github.com/odyssey-erp/procureflow/internal/observability"
	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/sheets"
	"github.com/odyssey-erp/procureflow/internal/workflow"
)

// SheetRepository is the snapshot view the service reads and writes through.
type SheetRepository interface {
	Get(ctx context.Context, sheet sheets.Sheet) (sheets.Snapshot, error)
	Refresh(ctx context.Context, sheet sheets.Sheet) (sheets.Snapshot, error)
	Write(ctx context.Context, sheet sheets.Sheet, mode sheets.Mode, rows []sheets.Row) error
}

// AllocatorPort hands out sequence numbers.
type AllocatorPort interface {
	Allocate(ctx context.Context, req numbering.Request) (string, error)
	Release(ctx context.Context, series, number string) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Folders maps catalog attachment folders to storage folders. Unmapped
// names are used as is.
type Folders struct {
	PurchaseOrders string
	Indents        string
	BillPhotos     string
	Mapping        map[string]string
}

func (f Folders) resolve(name string) string {
	if mapped, ok := f.Mapping[name]; ok && mapped != "" {
		return mapped
	}
	return name
}

// Config tunes numbering prefixes and rounding. A negative RoundPlaces keeps
// raw float amounts.
type Config struct {
	POSeries    numbering.Series
	RoundPlaces int32
	Folders     Folders
}

// Deps groups Service collaborators. Audit and Metrics are optional.
type Deps struct {
	Sheets    SheetRepository
	Catalog   *workflow.Catalog
	Uploads   attachments.Uploader
	Allocator AllocatorPort
	Audit     AuditPort
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Service orchestrates the procurement workflow screens.
type Service struct {
	sheets    SheetRepository
	catalog   *workflow.Catalog
	uploads   attachments.Uploader
	allocator AllocatorPort
	audit     AuditPort
	metrics   *observability.Metrics
	logger    *slog.Logger
	cfg       Config
	validate  *validator.Validate
	now       func() time.Time
}

// NewService constructs the procurement service.
func NewService(deps Deps, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.POSeries.Prefix == "" {
		cfg.POSeries = numbering.NewSeries("")
	}
	if cfg.Folders.PurchaseOrders == "" {
		cfg.Folders.PurchaseOrders = "purchase-orders"
	}
	if cfg.Folders.Indents == "" {
		cfg.Folders.Indents = "indents"
	}
	if cfg.Folders.BillPhotos == "" {
		cfg.Folders.BillPhotos = "bill-photos"
	}
	return &Service{
		sheets:    deps.Sheets,
		catalog:   deps.Catalog,
		uploads:   deps.Uploads,
		allocator: deps.Allocator,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		logger:    logger,
		cfg:       cfg,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// Screens lists the catalog.
func (s *Service) Screens() []workflow.Screen {
	return s.catalog.Screens()
}

func (s *Service) screen(name string) (workflow.Screen, error) {
	screen, err := s.catalog.Screen(name)
	if err != nil {
		return workflow.Screen{}, fmt.Errorf("%w: %w", shared.ErrNotFound, err)
	}
	return screen, nil
}

func (s *Service) records(ctx context.Context, kind workflow.Kind) ([]workflow.Record, error) {
	snap, err := s.sheets.Get(ctx, kind.Sheet())
	if err != nil {
		return nil, err
	}
	return workflow.FromRows(kind, snap.Rows)
}

func byKey(records []workflow.Record, key string) []workflow.Record {
	var out []workflow.Record
	for _, r := range records {
		if r.Key == key {
			out = append(out, r)
		}
	}
	return out
}

// Queue returns pending and paged history records for a screen.
func (s *Service) Queue(ctx context.Context, name string, page, perPage int) (QueueView, error) {
	screen, err := s.screen(name)
	if err != nil {
		return QueueView{}, err
	}
	recs, err := s.records(ctx, screen.Kind)
	if err != nil {
		return QueueView{}, err
	}
	history := workflow.History(recs, screen.Stage)
	// most recently completed first
	sort.SliceStable(history, func(i, j int) bool {
		a, _ := history[i].Stage(screen.Stage)
		b, _ := history[j].Stage(screen.Stage)
		ta, _ := workflow.ParseTimestamp(a.Actual)
		tb, _ := workflow.ParseTimestamp(b.Actual)
		return ta.After(tb)
	})
	pg := shared.NewPagination(page, perPage, len(history))
	start, end := pg.Bounds()
	return QueueView{
		Screen:      screen,
		Pending:     workflow.Pending(recs, screen.Stage),
		History:     history[start:end],
		HistoryPage: pg,
	}, nil
}

// Complete validates the payload, uploads attachments, advances every row
// sharing the key and plans the follow-up stages in one update batch.
func (s *Service) Complete(ctx context.Context, in CompleteInput) (CompleteResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return CompleteResult{}, shared.Validationf("complete: %v", err)
	}
	screen, err := s.screen(in.Screen)
	if err != nil {
		return CompleteResult{}, err
	}
	if screen.Via != "" {
		return CompleteResult{}, shared.Validationf("%s completes through /procurement/%s", screen.Name, screen.Via)
	}
	recs, err := s.records(ctx, screen.Kind)
	if err != nil {
		return CompleteResult{}, err
	}
	targets := byKey(recs, in.Key)
	if len(targets) == 0 {
		return CompleteResult{}, fmt.Errorf("%w: %s %s", shared.ErrNotFound, screen.Kind, in.Key)
	}
	for _, rec := range targets {
		if !workflow.IsPending(rec, screen.Stage) {
			return CompleteResult{}, shared.Validationf("%s %s is not pending at stage %d", screen.Kind, in.Key, screen.Stage)
		}
	}
	payload, err := screen.Prepare(targets[0], in.Payload)
	if err != nil {
		return CompleteResult{}, err
	}
	if err := s.uploadScreenFiles(ctx, screen, in.Files, payload); err != nil {
		return CompleteResult{}, err
	}

	now := s.now()
	updated, patches, planned, err := s.transition(screen, targets, payload, now)
	if err != nil {
		return CompleteResult{}, err
	}
	if err := s.sheets.Write(ctx, screen.Kind.Sheet(), sheets.ModeUpdate, patches); err != nil {
		s.logger.Error("complete stage write", slog.String("screen", screen.Name), slog.String("key", in.Key), slog.Any("error", err))
		return CompleteResult{}, err
	}
	s.metrics.RecordStageTransition(string(screen.Kind.Sheet()), screen.Stage)
	s.recordAudit(ctx, "STAGE_COMPLETE", screen.Kind.Sheet(), in.Key, map[string]any{"screen": screen.Name, "stage": screen.Stage, "planned": planned})

	if screen.Kind == workflow.KindStoreIn && screen.Stage == 6 {
		if err := s.openTallyEntry(ctx, updated[0], now); err != nil {
			s.logger.Warn("open tally entry", slog.String("lift", in.Key), slog.Any("error", err))
		}
	}
	return CompleteResult{Screen: screen.Name, Key: in.Key, Records: updated, Planned: planned}, nil
}

func (s *Service) uploadScreenFiles(ctx context.Context, screen workflow.Screen, files map[string]attachments.File, payload map[string]any) error {
	for field := range files {
		known := false
		for _, a := range screen.Attachments {
			if a.Field == field {
				known = true
				break
			}
		}
		if !known {
			return shared.Validationf("%s does not accept file %s", screen.Name, field)
		}
	}
	for _, a := range screen.Attachments {
		file, ok := files[a.Field]
		if !ok {
			continue
		}
		url, err := s.uploads.Upload(ctx, file, s.cfg.Folders.resolve(a.Folder), nil)
		if err != nil {
			return err
		}
		payload[a.Field] = url
	}
	return nil
}

// transition advances targets at the screen stage and schedules follow-ups.
func (s *Service) transition(screen workflow.Screen, targets []workflow.Record, payload map[string]any, now time.Time) ([]workflow.Record, []sheets.Row, []int, error) {
	updated := make([]workflow.Record, 0, len(targets))
	patches := make([]sheets.Row, 0, len(targets))
	var planned []int
	for _, rec := range targets {
		next, err := workflow.Advance(rec, screen.Stage, payload, now)
		if err != nil {
			return nil, nil, nil, err
		}
		stages := screen.FollowUps(next)
		for _, stage := range stages {
			if mark, _ := next.Stage(stage); mark.Planned != "" {
				continue
			}
			if next, err = workflow.Schedule(next, stage, now); err != nil {
				return nil, nil, nil, err
			}
		}
		planned = stages
		updated = append(updated, next)
		patches = append(patches, workflow.Patch(rec, next))
	}
	return updated, patches, planned, nil
}

// openTallyEntry starts the tally flow for the indent of a received lift,
// once per indent.
func (s *Service) openTallyEntry(ctx context.Context, lift workflow.Record, now time.Time) error {
	indentNo := lift.Field("indentNo")
	if indentNo == "" {
		return nil
	}
	tally, err := s.records(ctx, workflow.KindTallyEntry)
	if err != nil {
		return err
	}
	if len(byKey(tally, indentNo)) > 0 {
		return nil
	}
	var indent workflow.Record
	if indents, err := s.records(ctx, workflow.KindIndent); err == nil {
		if found := byKey(indents, indentNo); len(found) > 0 {
			indent = found[0]
		}
	}
	at := now.Format(workflow.TimestampLayout)
	row := sheets.Row{
		"timestamp":         at,
		"indentNo":          indentNo,
		"indentDate":        indent.Field("timestamp"),
		"purchaseDate":      lift.Field("timestamp"),
		"materialInDate":    at,
		"productName":       lift.Field("productName"),
		"billNo":            lift.Field("billNo"),
		"qty":               lift.Fields.Float("receivedQuantity"),
		"partyName":         lift.Field("vendorName"),
		"billAmt":           lift.Fields.Float("billAmount"),
		"billImage":         lift.Field("billImage"),
		"productImage":      lift.Field("photoOfProduct"),
		"approvedPartyName": indent.Field("approvedVendorName"),
		"rate":              indent.Fields.Float("approvedRate"),
		"indentQty":         indent.Fields.Float("approvedQuantity"),
		"totalRate":         indent.Fields.Float("approvedRate") * lift.Fields.Float("receivedQuantity"),
		workflow.PlannedField(1): at,
	}
	return s.sheets.Write(ctx, sheets.SheetTallyEntry, sheets.ModeInsert, []sheets.Row{row})
}

// keyLoader reads every identity value of sheet, bypassing the cache.
func (s *Service) keyLoader(sheet sheets.Sheet) func(ctx context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		snap, err := s.sheets.Refresh(ctx, sheet)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(snap.Rows))
		for _, row := range snap.Rows {
			if key := row.Key(sheet); key != "" {
				keys = append(keys, key)
			}
		}
		return keys, nil
	}
}

func (s *Service) release(ctx context.Context, series, number string) {
	if err := s.allocator.Release(ctx, series, number); err != nil {
		s.logger.Warn("release sequence number", slog.String("series", series), slog.String("number", number), slog.Any("error", err))
	}
}

// CreateIndent allocates an indent number and plans approval for every product.
func (s *Service) CreateIndent(ctx context.Context, in CreateIndentInput) (Indent, error) {
	if err := s.validate.Struct(in); err != nil {
		return Indent{}, shared.Validationf("indent: %v", err)
	}
	attachmentURL := ""
	if in.Attachment != nil {
		url, err := s.uploads.Upload(ctx, *in.Attachment, s.cfg.Folders.Indents, nil)
		if err != nil {
			return Indent{}, err
		}
		attachmentURL = url
	}
	number, err := s.allocator.Allocate(ctx, numbering.Request{
		Series: seriesIndent,
		Scope:  "all",
		Load:   s.keyLoader(sheets.SheetIndent),
		Next:   numbering.NextIndentNumber,
	})
	if err != nil {
		return Indent{}, err
	}
	at := s.now().Format(workflow.TimestampLayout)
	rows := make([]sheets.Row, 0, len(in.Products))
	for _, p := range in.Products {
		rows = append(rows, sheets.Row{
			"timestamp":              at,
			"indentNumber":           number,
			"indenterName":           in.IndenterName,
			"department":             in.Department,
			"areaOfUse":              in.AreaOfUse,
			"groupHead":              p.GroupHead,
			"productName":            p.ProductName,
			"quantity":               p.Quantity,
			"uom":                    p.UOM,
			"specifications":         p.Specifications,
			"indentType":             in.IndentType,
			"attachment":             attachmentURL,
			workflow.PlannedField(1): at,
		})
	}
	if err := s.sheets.Write(ctx, sheets.SheetIndent, sheets.ModeInsert, rows); err != nil {
		s.release(ctx, seriesIndent, number)
		return Indent{}, err
	}
	recs, err := workflow.FromRows(workflow.KindIndent, rows)
	if err != nil {
		return Indent{}, err
	}
	s.recordAudit(ctx, "INDENT_CREATE", sheets.SheetIndent, number, map[string]any{"products": len(rows)})
	return Indent{IndentNumber: number, Records: recs}, nil
}

func (s *Service) poNumbers(snap sheets.Snapshot) []string {
	out := make([]string, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		if n := row.String("poNumber"); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// NextPONumber previews the number the create form will receive.
func (s *Service) NextPONumber(ctx context.Context, at time.Time) (string, error) {
	if at.IsZero() {
		at = s.now()
	}
	snap, err := s.sheets.Get(ctx, sheets.SheetPOMaster)
	if err != nil {
		return "", err
	}
	return s.cfg.POSeries.Next(s.poNumbers(snap), at), nil
}

// RevisablePOs lists each purchase order once, first row wins.
func (s *Service) RevisablePOs(ctx context.Context) ([]POSummary, error) {
	snap, err := s.sheets.Get(ctx, sheets.SheetPOMaster)
	if err != nil {
		return nil, err
	}
	rows := numbering.DedupeByKey(snap.Rows, func(r sheets.Row) string { return r.String("poNumber") })
	out := make([]POSummary, 0, len(rows))
	for _, row := range rows {
		if row.String("poNumber") == "" {
			continue
		}
		out = append(out, POSummary{
			PONumber:      row.String("poNumber"),
			PartyName:     row.String("partyName"),
			TotalPOAmount: row.Float("totalPoAmount"),
			Timestamp:     row.String("timestamp"),
		})
	}
	return out, nil
}

// CreatePO prices the lines, uploads and mails the PO document, inserts the
// PO MASTER rows and, for new orders, moves the indents on to lifting.
func (s *Service) CreatePO(ctx context.Context, in CreatePOInput) (PurchaseOrder, error) {
	if in.Mode == "" {
		in.Mode = POModeCreate
	}
	if in.Mode != POModeCreate && in.Mode != POModeRevise {
		return PurchaseOrder{}, shared.Validationf("po: unknown mode %q", in.Mode)
	}
	if err := s.validate.Struct(in); err != nil {
		return PurchaseOrder{}, shared.Validationf("po: %v", err)
	}
	if len(in.Document.Data) == 0 {
		return PurchaseOrder{}, shared.Validationf("po: document required")
	}
	if in.PODate.IsZero() {
		in.PODate = s.now()
	}

	indents, err := s.records(ctx, workflow.KindIndent)
	if err != nil {
		return PurchaseOrder{}, err
	}
	lines, targets, err := s.priceLines(in, indents)
	if err != nil {
		return PurchaseOrder{}, err
	}
	items := make([]costing.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, l.Item)
	}
	if err := costing.Validate(items); err != nil {
		return PurchaseOrder{}, err
	}
	totals := costing.Summarize(items).Round(s.cfg.RoundPlaces)

	masterSnap, err := s.sheets.Get(ctx, sheets.SheetMaster)
	if err != nil {
		return PurchaseOrder{}, err
	}
	email := sheets.DecodeMaster(masterSnap.Rows).VendorEmail(in.SupplierName)
	if email == "" {
		return PurchaseOrder{}, shared.Validationf("po: no email registered for supplier %s", in.SupplierName)
	}

	number, err := s.allocatePONumber(ctx, in)
	if err != nil {
		return PurchaseOrder{}, err
	}
	doc := in.Document
	if doc.Name == "" {
		doc.Name = "PO-" + strings.ReplaceAll(number, "/", "-") + ".pdf"
	}
	if doc.ContentType == "" {
		doc.ContentType = "application/pdf"
	}
	url, err := s.uploads.Upload(ctx, doc, s.cfg.Folders.PurchaseOrders, &attachments.Link{
		Mode:      attachments.LinkEmail,
		To:        email,
		Subject:   "Purchase order " + number,
		Reference: number,
		Amount:    totals.GrandTotal,
	})
	if err != nil {
		s.release(ctx, seriesPO, number)
		return PurchaseOrder{}, err
	}

	rows := s.poRows(in, number, url, lines, totals)
	if err := s.sheets.Write(ctx, sheets.SheetPOMaster, sheets.ModeInsert, rows); err != nil {
		s.release(ctx, seriesPO, number)
		s.logger.Error("po master write", slog.String("po", number), slog.Any("error", err))
		return PurchaseOrder{}, err
	}

	if in.Mode == POModeCreate {
		if err := s.orderIndents(ctx, targets, number, url); err != nil {
			s.logger.Error("po indent update", slog.String("po", number), slog.Any("error", err))
			return PurchaseOrder{}, err
		}
	}
	s.recordAudit(ctx, "PO_"+strings.ToUpper(string(in.Mode)), sheets.SheetPOMaster, number, map[string]any{
		"supplier": in.SupplierName, "lines": len(lines), "grand_total": totals.GrandTotal,
	})
	return PurchaseOrder{Number: number, Supplier: in.SupplierName, Email: email, DocumentURL: url, Totals: totals, Lines: lines}, nil
}

func (s *Service) priceLines(in CreatePOInput, indents []workflow.Record) ([]POLine, []workflow.Record, error) {
	lines := make([]POLine, 0, len(in.Lines))
	var targets []workflow.Record
	seen := map[string]bool{}
	for _, l := range in.Lines {
		if seen[l.IndentNumber] {
			return nil, nil, shared.Validationf("po: indent %s listed twice", l.IndentNumber)
		}
		seen[l.IndentNumber] = true
		matched := byKey(indents, l.IndentNumber)
		if len(matched) == 0 {
			return nil, nil, fmt.Errorf("%w: indent %s", shared.ErrNotFound, l.IndentNumber)
		}
		indent := matched[0]
		if in.Mode == POModeCreate {
			if !workflow.IsPending(indent, 4) {
				return nil, nil, shared.Validationf("po: indent %s is not awaiting a purchase order", l.IndentNumber)
			}
			if vendor := indent.Field("approvedVendorName"); vendor != "" && vendor != in.SupplierName {
				return nil, nil, shared.Validationf("po: indent %s is approved for %s", l.IndentNumber, vendor)
			}
			targets = append(targets, matched...)
		}
		qty := l.Quantity
		if qty == 0 {
			qty = indent.Fields.Float("approvedQuantity")
		}
		rate := l.Rate
		if rate == 0 {
			rate = indent.Fields.Float("approvedRate")
		}
		unit := l.Unit
		if unit == "" {
			unit = indent.Field("uom")
		}
		item := costing.LineItem{Quantity: qty, Rate: rate, DiscountPercent: l.DiscountPercent, GSTPercent: l.GSTPercent}
		lines = append(lines, POLine{
			IndentNumber: l.IndentNumber,
			Product:      indent.Field("productName"),
			Unit:         unit,
			Item:         item,
			Amount:       costing.RoundAmount(item.LineTotal(), s.cfg.RoundPlaces),
		})
	}
	return lines, targets, nil
}

func (s *Service) allocatePONumber(ctx context.Context, in CreatePOInput) (string, error) {
	load := func(ctx context.Context) ([]string, error) {
		snap, err := s.sheets.Refresh(ctx, sheets.SheetPOMaster)
		if err != nil {
			return nil, err
		}
		return s.poNumbers(snap), nil
	}
	if in.Mode == POModeRevise {
		if strings.TrimSpace(in.PONumber) == "" {
			return "", shared.Validationf("po: revise needs the purchase order number")
		}
		existing, err := load(ctx)
		if err != nil {
			return "", err
		}
		found := false
		for _, n := range existing {
			if n == in.PONumber {
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("%w: purchase order %s", shared.ErrNotFound, in.PONumber)
		}
		return s.allocator.Allocate(ctx, numbering.Request{
			Series: seriesPO,
			Scope:  in.PONumber,
			Load:   load,
			Next:   func(existing []string) string { return numbering.NextRevision(in.PONumber, existing) },
		})
	}
	return s.allocator.Allocate(ctx, numbering.Request{
		Series: seriesPO,
		Scope:  numbering.FiscalYear(in.PODate),
		Load:   load,
		Next:   func(existing []string) string { return s.cfg.POSeries.Next(existing, in.PODate) },
	})
}

func (s *Service) poRows(in CreatePOInput, number, url string, lines []POLine, totals costing.Totals) []sheets.Row {
	rows := make([]sheets.Row, 0, len(lines))
	for _, l := range lines {
		row := sheets.Row{
			"timestamp":       in.PODate.Format(workflow.TimestampLayout),
			"partyName":       in.SupplierName,
			"poNumber":        number,
			"internalCode":    l.IndentNumber,
			"product":         l.Product,
			"description":     in.Description,
			"quantity":        l.Item.Quantity,
			"unit":            l.Unit,
			"rate":            l.Item.Rate,
			"gst":             l.Item.GSTPercent,
			"discount":        l.Item.DiscountPercent,
			"amount":          l.Amount,
			"totalPoAmount":   totals.GrandTotal,
			"pdf":             url,
			"preparedBy":      in.PreparedBy,
			"approvedBy":      in.ApprovedBy,
			"quotationNumber": in.QuotationNumber,
			"quotationDate":   formatOptional(in.QuotationDate),
			"enquiryNumber":   in.EnquiryNumber,
			"enquiryDate":     formatOptional(in.EnquiryDate),
			"discountPercent": l.Item.DiscountPercent,
			"gstPercent":      l.Item.GSTPercent,
			"deliveryDate":    formatOptional(in.DeliveryDate),
			"paymentTerms":    in.PaymentTerms,
			"numberOfDays":    in.NumberOfDays,
		}
		for i := 0; i < 10; i++ {
			term := ""
			if i < len(in.Terms) {
				term = in.Terms[i]
			}
			row[fmt.Sprintf("term%d", i+1)] = term
		}
		rows = append(rows, row)
	}
	return rows
}

func formatOptional(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(workflow.TimestampLayout)
}

// orderIndents completes stage 4 on every ordered indent row and plans lifting.
func (s *Service) orderIndents(ctx context.Context, targets []workflow.Record, number, url string) error {
	if len(targets) == 0 {
		return nil
	}
	now := s.now()
	patches := make([]sheets.Row, 0, len(targets))
	for _, rec := range targets {
		next, err := workflow.Advance(rec, 4, map[string]any{"poNumber": number, "poCopy": url}, now)
		if err != nil {
			return err
		}
		if next, err = workflow.Schedule(next, 5, now); err != nil {
			return err
		}
		patches = append(patches, workflow.Patch(rec, next))
	}
	if err := s.sheets.Write(ctx, sheets.SheetIndent, sheets.ModeUpdate, patches); err != nil {
		return err
	}
	s.metrics.RecordStageTransition(string(sheets.SheetIndent), 4)
	return nil
}

// PendingLiftQuantity reports the approved quantity still to be lifted.
func (s *Service) PendingLiftQuantity(ctx context.Context, indentNumber string) (LiftBalance, error) {
	indents, err := s.records(ctx, workflow.KindIndent)
	if err != nil {
		return LiftBalance{}, err
	}
	matched := byKey(indents, indentNumber)
	if len(matched) == 0 {
		return LiftBalance{}, fmt.Errorf("%w: indent %s", shared.ErrNotFound, indentNumber)
	}
	lifts, err := s.sheets.Get(ctx, sheets.SheetStoreIn)
	if err != nil {
		return LiftBalance{}, err
	}
	return liftBalance(matched[0], lifts.Rows), nil
}

func liftBalance(indent workflow.Record, storeIn []sheets.Row) LiftBalance {
	approved := decimal.NewFromFloat(indent.Fields.Float("approvedQuantity"))
	if approved.IsZero() {
		approved = decimal.NewFromFloat(indent.Fields.Float("quantity"))
	}
	lifted := decimal.Zero
	for _, row := range storeIn {
		if row.String("indentNo") == indent.Key {
			lifted = lifted.Add(decimal.NewFromFloat(row.Float("qty")))
		}
	}
	return newLiftBalance(indent.Key, approved, lifted)
}

// newLiftBalance computes approved - lifted in decimal, floored at zero.
func newLiftBalance(indentNumber string, approved, lifted decimal.Decimal) LiftBalance {
	pending := approved.Sub(lifted)
	if pending.IsNegative() {
		pending = decimal.Zero
	}
	return LiftBalance{
		IndentNumber: indentNumber,
		Approved:     approved.InexactFloat64(),
		Lifted:       lifted.InexactFloat64(),
		Pending:      pending.InexactFloat64(),
	}
}

// CreateLift inserts a STORE IN row for material lifted against an ordered
// indent. The indent leaves the lift queue once nothing remains to lift.
func (s *Service) CreateLift(ctx context.Context, in CreateLiftInput) (Lift, error) {
	if err := s.validate.Struct(in); err != nil {
		return Lift{}, shared.Validationf("lift: %v", err)
	}
	indents, err := s.records(ctx, workflow.KindIndent)
	if err != nil {
		return Lift{}, err
	}
	matched := byKey(indents, in.IndentNumber)
	if len(matched) == 0 {
		return Lift{}, fmt.Errorf("%w: indent %s", shared.ErrNotFound, in.IndentNumber)
	}
	indent := matched[0]
	if !workflow.IsPending(indent, 5) {
		return Lift{}, shared.Validationf("lift: indent %s is not awaiting lifting", in.IndentNumber)
	}
	storeIn, err := s.sheets.Refresh(ctx, sheets.SheetStoreIn)
	if err != nil {
		return Lift{}, err
	}
	balance := liftBalance(indent, storeIn.Rows)
	qty := decimal.NewFromFloat(in.Quantity)
	if qty.GreaterThan(decimal.NewFromFloat(balance.Pending)) {
		return Lift{}, shared.Validationf("lift: %v exceeds pending quantity %v for %s", in.Quantity, balance.Pending, in.IndentNumber)
	}

	photoURL := ""
	if in.PhotoOfBill != nil {
		url, err := s.uploads.Upload(ctx, *in.PhotoOfBill, s.cfg.Folders.BillPhotos, nil)
		if err != nil {
			return Lift{}, err
		}
		photoURL = url
	}
	number, err := s.allocator.Allocate(ctx, numbering.Request{
		Series: seriesLift,
		Scope:  "all",
		Load:   s.keyLoader(sheets.SheetStoreIn),
		Next:   numbering.NextLiftNumber,
	})
	if err != nil {
		return Lift{}, err
	}
	now := s.now()
	at := now.Format(workflow.TimestampLayout)
	vendor := in.VendorName
	if vendor == "" {
		vendor = indent.Field("approvedVendorName")
	}
	row := sheets.Row{
		"timestamp":              at,
		"liftNumber":             number,
		"indentNo":               in.IndentNumber,
		"poNumber":               indent.Field("poNumber"),
		"vendorName":             vendor,
		"productName":            indent.Field("productName"),
		"billStatus":             in.BillStatus,
		"billNo":                 in.BillNo,
		"qty":                    in.Quantity,
		"leadTimeToLiftMaterial": in.LeadTime,
		"typeOfBill":             in.TypeOfBill,
		"billAmount":             in.BillAmount,
		"discountAmount":         in.DiscountAmount,
		"paymentType":            in.PaymentType,
		"advanceAmountIfAny":     in.AdvanceAmount,
		"photoOfBill":            photoURL,
		"transportationInclude":  in.TransportationInclude,
		"transporterName":        in.TransporterName,
		"amount":                 in.Amount,
		workflow.PlannedField(6): at,
	}
	if err := s.sheets.Write(ctx, sheets.SheetStoreIn, sheets.ModeInsert, []sheets.Row{row}); err != nil {
		s.release(ctx, seriesLift, number)
		return Lift{}, err
	}
	balance = newLiftBalance(in.IndentNumber,
		decimal.NewFromFloat(balance.Approved),
		decimal.NewFromFloat(balance.Lifted).Add(qty))

	closed := false
	if balance.Pending == 0 {
		patches := make([]sheets.Row, 0, len(matched))
		for _, rec := range matched {
			next, err := workflow.Advance(rec, 5, map[string]any{"liftedQuantity": balance.Lifted}, now)
			if err != nil {
				return Lift{}, err
			}
			patches = append(patches, workflow.Patch(rec, next))
		}
		if err := s.sheets.Write(ctx, sheets.SheetIndent, sheets.ModeUpdate, patches); err != nil {
			s.logger.Error("close lifted indent", slog.String("indent", in.IndentNumber), slog.Any("error", err))
			return Lift{}, err
		}
		s.metrics.RecordStageTransition(string(sheets.SheetIndent), 5)
		closed = true
	}
	s.recordAudit(ctx, "LIFT_CREATE", sheets.SheetStoreIn, number, map[string]any{"indent": in.IndentNumber, "qty": in.Quantity})
	return Lift{LiftNumber: number, IndentNumber: in.IndentNumber, Quantity: in.Quantity, Balance: balance, IndentClosed: closed}, nil
}

// CreateIssue allocates one issue number for all products and plans approval.
func (s *Service) CreateIssue(ctx context.Context, in CreateIssueInput) (Issue, error) {
	if err := s.validate.Struct(in); err != nil {
		return Issue{}, shared.Validationf("issue: %v", err)
	}
	number, err := s.allocator.Allocate(ctx, numbering.Request{
		Series: seriesIssue,
		Scope:  "all",
		Load:   s.keyLoader(sheets.SheetIssue),
		Next:   numbering.NextIssueNumber,
	})
	if err != nil {
		return Issue{}, err
	}
	at := s.now().Format(workflow.TimestampLayout)
	rows := make([]sheets.Row, 0, len(in.Products))
	for _, p := range in.Products {
		rows = append(rows, sheets.Row{
			"timestamp":              at,
			"issueNo":                number,
			"issueTo":                p.IssueTo,
			"productName":            p.ProductName,
			"quantity":               p.Quantity,
			"department":             p.Department,
			"uom":                    p.UOM,
			workflow.PlannedField(1): at,
		})
	}
	if err := s.sheets.Write(ctx, sheets.SheetIssue, sheets.ModeInsert, rows); err != nil {
		s.release(ctx, seriesIssue, number)
		return Issue{}, err
	}
	s.recordAudit(ctx, "ISSUE_CREATE", sheets.SheetIssue, number, map[string]any{"products": len(rows)})
	return Issue{IssueNo: number, Lines: len(rows)}, nil
}

// MasterData returns the decoded MASTER sheet.
func (s *Service) MasterData(ctx context.Context) (sheets.MasterData, error) {
	snap, err := s.sheets.Get(ctx, sheets.SheetMaster)
	if err != nil {
		return sheets.MasterData{}, err
	}
	return sheets.DecodeMaster(snap.Rows), nil
}

func (s *Service) recordAudit(ctx context.Context, action string, sheet sheets.Sheet, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Sheet:    string(sheet),
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
