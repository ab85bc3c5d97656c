package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paylink/internal/apperror"
	"github.com/smallbiznis/paylink/internal/clock"
	"github.com/smallbiznis/paylink/internal/config"
	obsmetrics "github.com/smallbiznis/paylink/internal/observability/metrics"
	"github.com/smallbiznis/paylink/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	promodomain "github.com/smallbiznis/paylink/internal/promo/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	descriptionReady        = "Ready for payment"
	descriptionFullDiscount = "Promo code covers the due amount"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	PaymentCfg *config.PaymentConfigHolder
	Repo       paymentdomain.Repository
	Adapters   *adapters.Registry
	PromoSvc   promodomain.Service
	Publisher  paymentdomain.EventPublisher
	Locker     paymentdomain.OrderLocker
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	baseURL    string
	currency   string
	paymentCfg *config.PaymentConfigHolder
	repo       paymentdomain.Repository
	adapters   *adapters.Registry
	promoSvc   promodomain.Service
	publisher  paymentdomain.EventPublisher
	locker     paymentdomain.OrderLocker
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		baseURL:    p.Cfg.ServiceBaseURL,
		currency:   p.Cfg.Currency,
		paymentCfg: p.PaymentCfg,
		repo:       p.Repo,
		adapters:   p.Adapters,
		promoSvc:   p.PromoSvc,
		publisher:  p.Publisher,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
	}
}

// outbox collects events to send once the surrounding write has committed.
type outbox []func(ctx context.Context)

func (o *outbox) add(fn func(ctx context.Context)) { *o = append(*o, fn) }

func (o outbox) flush(ctx context.Context) {
	for _, fn := range o {
		fn(ctx)
	}
}

// CreateOrder upserts the order for the command's reference and opens a new
// ready-for-payment transaction on it.
func (s *Service) CreateOrder(ctx context.Context, cmd paymentdomain.OrderCommand) (*paymentdomain.PurchaseOrder, error) {
	return s.upsertOrder(ctx, cmd)
}

// UpdateOrder behaves like CreateOrder: an unknown reference is created.
func (s *Service) UpdateOrder(ctx context.Context, cmd paymentdomain.OrderCommand) (*paymentdomain.PurchaseOrder, error) {
	return s.upsertOrder(ctx, cmd)
}

func (s *Service) upsertOrder(ctx context.Context, cmd paymentdomain.OrderCommand) (*paymentdomain.PurchaseOrder, error) {
	if cmd.Order == nil {
		return nil, apperror.Wrap(apperror.ErrInvalidRequest, paymentdomain.ErrMissingTransaction, paymentdomain.MessageMissingDetails)
	}
	refType, err := parseReferenceType(cmd.Order.ReferenceType)
	if err != nil {
		return nil, err
	}
	referenceID := cmd.Order.ReferenceID

	release, err := s.locker.Lock(ctx, paymentdomain.OrderRef(refType, referenceID))
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		order *paymentdomain.PurchaseOrder
		box   outbox
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindOrderByReference(ctx, tx, referenceID, refType)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if existing != nil {
			order = existing
			order.Amount = cmd.Order.Amount
			if cmd.Order.Currency != "" {
				order.Currency = cmd.Order.Currency
			}
			if order.Discount.Valid {
				order.ApplyDiscount(order.PromoCode, order.Discount.Decimal)
			}
			order.UpdatedAt = now
			if err := s.repo.UpdateOrder(ctx, tx, order); err != nil {
				return err
			}
		} else {
			order, err = s.newOrder(cmd, refType, now)
			if err != nil {
				return err
			}
			if err := s.repo.InsertOrder(ctx, tx, order); err != nil {
				return err
			}
		}
		return s.initPayment(ctx, tx, order, cmd.SendAutoNotification, &box)
	})
	if err != nil {
		return nil, err
	}
	box.flush(ctx)

	s.log.Info("purchase order saved",
		zap.String("order_ref", order.Ref()),
		zap.String("purchase_order_id", order.ID.String()),
		zap.String("gateway", order.Gateway.String()),
	)
	return order, nil
}

func (s *Service) newOrder(cmd paymentdomain.OrderCommand, refType paymentdomain.ReferenceType, now time.Time) (*paymentdomain.PurchaseOrder, error) {
	if cmd.User == nil {
		return nil, apperror.Wrap(apperror.ErrInvalidRequest, paymentdomain.ErrMissingUser, paymentdomain.MessageMissingDetails)
	}
	gateway, err := paymentdomain.ParseGateway(s.paymentCfg.Get().DefaultGateway)
	if err != nil {
		return nil, fmt.Errorf("default gateway %q: %w", s.paymentCfg.Get().DefaultGateway, err)
	}
	if !s.adapters.GatewayExists(gateway) {
		return nil, fmt.Errorf("default gateway %q: %w", gateway, paymentdomain.ErrUnknownGateway)
	}

	currency := cmd.Order.Currency
	if currency == "" {
		currency = s.currency
	}
	id := uuid.NewString()
	order := &paymentdomain.PurchaseOrder{
		ID:            s.genID.Generate(),
		ReferenceID:   cmd.Order.ReferenceID,
		ReferenceType: refType,
		UUID:          &id,
		UserID:        cmd.User.ID,
		FullName:      cmd.User.FullName,
		Email:         cmd.User.Email,
		PhoneNumber:   cmd.User.PhoneNumber,
		Address:       cmd.User.Address,
		City:          cmd.User.City,
		Country:       cmd.User.Country,
		Language:      cmd.User.Language,
		Amount:        cmd.Order.Amount,
		Currency:      currency,
		Gateway:       gateway,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if cmd.Order.BillingInterval > 0 {
		order.BillingInterval = cmd.Order.BillingInterval
		order.BillingTerm = cmd.Order.BillingTerm
	}
	return order, nil
}

// initPayment appends a zero-amount ready-for-payment row.
func (s *Service) initPayment(ctx context.Context, db *gorm.DB, order *paymentdomain.PurchaseOrder, notify bool, box *outbox) error {
	now := s.clock.Now()
	tx := paymentdomain.PaymentTransaction{
		ID:              s.genID.Generate(),
		PurchaseOrderID: order.ID,
		Status:          paymentdomain.StatusReadyForPayment,
		Amount:          decimal.Zero,
		Currency:        order.Currency,
		Description:     descriptionReady,
		ExpiresAt:       now.AddDate(0, 0, s.paymentCfg.Get().ExpiryDays),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.SaveTransaction(ctx, db, &tx); err != nil {
		return err
	}
	order.Transactions = append(order.Transactions, tx)

	snapshot := *order
	if notify {
		req := paymentdomain.NewNotificationRequest(&snapshot, s.baseURL)
		box.add(func(ctx context.Context) {
			s.publisher.PublishNotification(ctx, snapshot.UserID, req)
		})
	}
	s.queueTransaction(box, paymentdomain.EventCreate, &snapshot, tx, nil)
	return nil
}

// DeleteOrder cancels the order's payment. Subscriptions stop their
// recurring agreement at the gateway; other orders get their latest
// transaction cancelled.
func (s *Service) DeleteOrder(ctx context.Context, referenceID, referenceType string) error {
	refType, err := parseReferenceType(referenceType)
	if err != nil {
		return err
	}
	release, err := s.locker.Lock(ctx, paymentdomain.OrderRef(refType, referenceID))
	if err != nil {
		return err
	}
	defer release()

	order, err := s.repo.FindOrderByReference(ctx, s.db, referenceID, refType)
	if err != nil {
		return err
	}
	if order == nil {
		return paymentdomain.OrderNotFound(referenceID, refType)
	}

	if order.IsSubscription() {
		return s.cancelAgreement(ctx, order)
	}

	latest := order.LatestTransaction()
	if latest == nil {
		return noTransactions(referenceID, refType)
	}
	latest.Status = paymentdomain.StatusCancelled
	latest.UpdatedAt = s.clock.Now()
	if err := s.repo.SaveTransaction(ctx, s.db, latest); err != nil {
		return err
	}

	var box outbox
	s.queueTransaction(&box, paymentdomain.EventDelete, order, *latest, nil)
	box.flush(ctx)
	s.log.Info("payment transaction cancelled",
		zap.String("order_ref", order.Ref()),
		zap.String("transaction_id", latest.ID.String()),
	)
	return nil
}

func (s *Service) cancelAgreement(ctx context.Context, order *paymentdomain.PurchaseOrder) error {
	if order.BillingInterval == 0 {
		return nil
	}
	paid := order.SuccessfulTransaction()
	if paid == nil {
		return apperror.Wrap(apperror.ErrNotFound, paymentdomain.ErrAgreementNotFound,
			"No successful payment transaction found for subscription reference id: %s", order.ReferenceID)
	}
	canceller, ok := s.adapters.AgreementCanceller(order.Gateway)
	if !ok {
		return apperror.New(apperror.ErrInvalidRequest, "Recurring agreements are not supported by gateway %s", order.Gateway)
	}
	if err := canceller.CancelAgreement(ctx, paid.Reference); err != nil {
		return err
	}
	s.log.Info("recurring agreement cancelled",
		zap.String("order_ref", order.Ref()),
		zap.String("transaction_reference", paid.Reference),
	)
	return nil
}

// HostedPaymentLink returns the pay-now link for the order. Orders that
// already carry a uuid get their link back untouched; payability is checked
// when the link is opened. Orders without one are validated and paid
// through the gateway first.
func (s *Service) HostedPaymentLink(ctx context.Context, referenceID, referenceType string) (string, error) {
	refType, err := parseReferenceType(referenceType)
	if err != nil {
		return "", err
	}
	release, err := s.locker.Lock(ctx, paymentdomain.OrderRef(refType, referenceID))
	if err != nil {
		return "", err
	}
	defer release()

	order, err := s.repo.FindOrderByReference(ctx, s.db, referenceID, refType)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", paymentdomain.OrderNotFound(referenceID, refType)
	}
	if order.HasUUID() {
		return order.Link(s.baseURL), nil
	}
	if err := s.validatePayable(ctx, order); err != nil {
		return "", err
	}
	if _, err := s.createHostedPayment(ctx, order); err != nil {
		return "", err
	}
	return order.Link(s.baseURL), nil
}

// PayNow creates a fresh gateway payment for the order behind a pay-now
// link and returns the gateway URL.
func (s *Service) PayNow(ctx context.Context, orderUUID string) (string, error) {
	order, err := s.repo.FindOrderByUUID(ctx, s.db, orderUUID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", apperror.New(apperror.ErrNotFound, "Invalid order uuid(%s)", orderUUID)
	}

	release, err := s.locker.Lock(ctx, order.Ref())
	if err != nil {
		return "", err
	}
	defer release()

	order, err = s.repo.FindOrderByID(ctx, s.db, order.ID)
	if err != nil {
		return "", err
	}
	if err := s.validatePayable(ctx, order); err != nil {
		return "", err
	}
	return s.createHostedPayment(ctx, order)
}

// validatePayable rejects paid, cancelled and expired orders. Ready rows are
// moved to initiated and announced before any gateway is contacted.
func (s *Service) validatePayable(ctx context.Context, order *paymentdomain.PurchaseOrder) error {
	if order.HasSuccessfulTransaction() {
		return apperror.New(apperror.ErrConflict, paymentdomain.MessageAlreadyPaid)
	}

	var box outbox
	now := s.clock.Now()
	for i := range order.Transactions {
		tx := &order.Transactions[i]
		if tx.Status != paymentdomain.StatusReadyForPayment {
			continue
		}
		tx.Status = paymentdomain.StatusInitiated
		tx.UpdatedAt = now
		if err := s.repo.SaveTransaction(ctx, s.db, tx); err != nil {
			return err
		}
		s.queueTransaction(&box, paymentdomain.EventCreate, order, *tx, nil)
	}
	box.flush(ctx)

	latest := order.LatestTransaction()
	if latest == nil {
		return nil
	}
	if latest.Status == paymentdomain.StatusCancelled {
		return apperror.New(apperror.ErrGone, paymentdomain.MessageLinkCancelled)
	}
	if !latest.ExpiresAt.IsZero() && !latest.ExpiresAt.After(now) {
		return apperror.New(apperror.ErrGone, paymentdomain.MessageLinkExpired)
	}
	return nil
}

func (s *Service) createHostedPayment(ctx context.Context, order *paymentdomain.PurchaseOrder) (string, error) {
	adapter, err := s.adapters.Adapter(order.Gateway)
	if err != nil {
		return "", fmt.Errorf("order %s gateway %q: %w", order.Ref(), order.Gateway, err)
	}
	latest := order.LatestTransaction()
	if latest == nil {
		return "", noTransactions(order.ReferenceID, order.ReferenceType)
	}

	now := s.clock.Now()
	hosted, err := adapter.CreateHostedPayment(ctx, paymentdomain.HostedPaymentRequest{
		Order:         order,
		Transaction:   latest,
		RequestNumber: order.RequestNumber(),
		Pages:         s.pages(order),
		Now:           now,
	})
	if err != nil {
		s.log.Error("hosted payment creation failed",
			zap.String("order_ref", order.Ref()),
			zap.String("gateway", order.Gateway.String()),
			zap.Error(err),
		)
		return "", err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if hosted.Reference != "" {
			latest.Reference = hosted.Reference
			latest.UpdatedAt = now
			if err := s.repo.SaveTransaction(ctx, tx, latest); err != nil {
				return err
			}
		}
		if !order.HasUUID() {
			id := uuid.NewString()
			order.UUID = &id
			order.UpdatedAt = now
			return s.repo.UpdateOrder(ctx, tx, order)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return hosted.URL, nil
}

// NoonStatusPage picks the page a Noon customer lands on after checkout.
func (s *Service) NoonStatusPage(ctx context.Context, gatewayOrderID string) (string, error) {
	resolver, ok := s.adapters.StatusPageResolver(paymentdomain.GatewayNoon)
	if !ok {
		return "", paymentdomain.ErrUnknownGateway
	}
	pages := toReturnPages(s.paymentCfg.Get().PagesFor(false))

	tx, err := s.repo.FindTransactionByReference(ctx, s.db, gatewayOrderID)
	if err != nil {
		return "", err
	}
	if tx != nil {
		order, err := s.repo.FindOrderByID(ctx, s.db, tx.PurchaseOrderID)
		if err != nil {
			return "", err
		}
		if order != nil {
			pages = s.pages(order)
		}
	}
	return resolver.StatusPage(ctx, gatewayOrderID, pages)
}

// ApplyPromo validates code for the order's user and applies it. A full
// discount settles the order without a gateway payment.
func (s *Service) ApplyPromo(ctx context.Context, referenceID, referenceType, promoCode string) (*paymentdomain.OrderView, error) {
	refType, err := parseReferenceType(referenceType)
	if err != nil {
		return nil, err
	}
	release, err := s.locker.Lock(ctx, paymentdomain.OrderRef(refType, referenceID))
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.repo.FindOrderByReference(ctx, s.db, referenceID, refType)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, paymentdomain.OrderNotFound(referenceID, refType)
	}
	if order.HasSuccessfulTransaction() {
		return nil, apperror.New(apperror.ErrConflict, paymentdomain.MessageAlreadyPaid)
	}

	promo, err := s.promoSvc.Validate(ctx, order.UserID, promoCode)
	if err != nil {
		return nil, err
	}

	var box outbox
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order.ApplyDiscount(promo.Code, promo.Discount)
		order.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateOrder(ctx, tx, order); err != nil {
			return err
		}
		usage, err := s.promoSvc.RecordUsage(ctx, tx, order.UserID, order.ID, promo)
		if err != nil {
			return err
		}
		if promo.IsFullDiscount() {
			return s.settleFullDiscount(ctx, tx, order, usage, &box)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	box.flush(ctx)
	s.obsMetrics.RecordPromoApplied(ctx, promo.IsFullDiscount())

	s.log.Info("promo code applied",
		zap.String("order_ref", order.Ref()),
		zap.String("promo_code", promo.Code),
		zap.String("amount_after_discount", order.PayableAmount().StringFixed(2)),
	)
	view := paymentdomain.NewOrderView(order)
	return &view, nil
}

// settleFullDiscount records the synthetic successful payment for an order
// whose promo covers the whole amount.
func (s *Service) settleFullDiscount(ctx context.Context, db *gorm.DB, order *paymentdomain.PurchaseOrder, usage *promodomain.Usage, box *outbox) error {
	now := s.clock.Now()
	expiresAt := now.AddDate(0, 0, s.paymentCfg.Get().ExpiryDays)
	if latest := order.LatestTransaction(); latest != nil {
		expiresAt = latest.ExpiresAt
	}
	tx := paymentdomain.PaymentTransaction{
		ID:              s.genID.Generate(),
		PurchaseOrderID: order.ID,
		Status:          paymentdomain.StatusAuthorized,
		Amount:          order.PayableAmount(),
		Currency:        order.Currency,
		Description:     descriptionFullDiscount,
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.SaveTransaction(ctx, db, &tx); err != nil {
		return err
	}
	order.Transactions = append(order.Transactions, tx)
	s.queueTransaction(box, paymentdomain.EventUpdate, order, tx, promoSnapshot(usage))
	return nil
}

// Reconcile appends tx, a gateway outcome correlated with prev, as the next
// row of order. The caller holds the order lock. Rows are never rewritten,
// except that the first outcome on an order holding only its ready row takes
// over that row.
func (s *Service) Reconcile(ctx context.Context, order *paymentdomain.PurchaseOrder, prev, tx *paymentdomain.PaymentTransaction) error {
	now := s.clock.Now()
	tx.PurchaseOrderID = order.ID
	tx.UpdatedAt = now

	switch {
	case prev != nil && len(order.Transactions) == 1 && tx.CardLast4 != "" &&
		prev.Status == paymentdomain.StatusReadyForPayment:
		// First payment attempt straight from a ready row keeps that row's
		// identity.
		tx.ID = prev.ID
		tx.CreatedAt = prev.CreatedAt
	default:
		tx.ID = s.genID.Generate()
		tx.CreatedAt = now
	}

	var box outbox
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var snapshot *paymentdomain.PromoSnapshot
		if tx.Status.IsSuccess() && order.PromoCode != "" {
			usage, flipped, err := s.promoSvc.MarkSucceeded(ctx, db, order.ID, order.PromoCode)
			if err != nil {
				return err
			}
			if usage != nil {
				snapshot = promoSnapshot(usage)
			}
			if flipped {
				s.log.Info("promo usage succeeded",
					zap.String("order_ref", order.Ref()),
					zap.String("promo_code", order.PromoCode),
				)
			}
		}
		if err := s.repo.SaveTransaction(ctx, db, tx); err != nil {
			return err
		}
		s.queueTransaction(&box, paymentdomain.EventUpdate, order, *tx, snapshot)
		return nil
	})
	if err != nil {
		return err
	}
	box.flush(ctx)

	s.log.Info("payment transaction reconciled",
		zap.String("order_ref", order.Ref()),
		zap.String("transaction_id", tx.ID.String()),
		zap.String("status", string(tx.Status)),
		zap.String("gateway_status", tx.GatewayStatus),
	)
	return nil
}

// LockOrder serializes work on one order across instances.
func (s *Service) LockOrder(ctx context.Context, t paymentdomain.ReferenceType, referenceID string) (func(), error) {
	return s.locker.Lock(ctx, paymentdomain.OrderRef(t, referenceID))
}

func (s *Service) GetOrder(ctx context.Context, referenceID, referenceType string) (*paymentdomain.OrderView, error) {
	order, err := s.findOrder(ctx, referenceID, referenceType)
	if err != nil {
		return nil, err
	}
	view := paymentdomain.NewOrderView(order)
	now := s.clock.Now()
	for i := range order.Transactions {
		view.Transactions = append(view.Transactions, paymentdomain.NewTransactionView(order, &order.Transactions[i], s.baseURL, now))
	}
	return &view, nil
}

func (s *Service) LatestTransaction(ctx context.Context, referenceID, referenceType string) (*paymentdomain.TransactionView, error) {
	order, err := s.findOrder(ctx, referenceID, referenceType)
	if err != nil {
		return nil, err
	}
	latest := order.LatestTransaction()
	if latest == nil {
		return nil, noTransactions(order.ReferenceID, order.ReferenceType)
	}
	view := paymentdomain.NewTransactionView(order, latest, s.baseURL, s.clock.Now())
	return &view, nil
}

func (s *Service) findOrder(ctx context.Context, referenceID, referenceType string) (*paymentdomain.PurchaseOrder, error) {
	refType, err := parseReferenceType(referenceType)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindOrderByReference(ctx, s.db, referenceID, refType)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, paymentdomain.OrderNotFound(referenceID, refType)
	}
	return order, nil
}

func (s *Service) queueTransaction(box *outbox, eventType paymentdomain.EventType, order *paymentdomain.PurchaseOrder, tx paymentdomain.PaymentTransaction, promo *paymentdomain.PromoSnapshot) {
	view := paymentdomain.NewTransactionView(order, &tx, s.baseURL, s.clock.Now())
	warehouse := paymentdomain.NewWarehouseEvent(order, &tx, promo, s.baseURL)
	userID := order.UserID
	box.add(func(ctx context.Context) {
		s.publisher.PublishTransaction(ctx, eventType, userID, view, warehouse)
	})
}

func (s *Service) pages(order *paymentdomain.PurchaseOrder) paymentdomain.ReturnPages {
	return toReturnPages(s.paymentCfg.Get().PagesFor(order.IsSubscription()))
}

func toReturnPages(p config.ReturnPages) paymentdomain.ReturnPages {
	return paymentdomain.ReturnPages{
		Authorised: p.Authorised,
		Declined:   p.Declined,
		Cancelled:  p.Cancelled,
	}
}

func promoSnapshot(usage *promodomain.Usage) *paymentdomain.PromoSnapshot {
	if usage == nil {
		return nil
	}
	return &paymentdomain.PromoSnapshot{
		PromoID:                usage.PromoID.String(),
		Code:                   usage.PromoCode,
		Discount:               usage.Discount,
		UsedWithSuccessPayment: usage.UsedWithSuccessPayment,
	}
}

func parseReferenceType(raw string) (paymentdomain.ReferenceType, error) {
	t, err := paymentdomain.ParseReferenceType(raw)
	if err != nil {
		return "", apperror.Wrap(apperror.ErrInvalidRequest, err, "Invalid reference type: %s", raw)
	}
	return t, nil
}

func noTransactions(referenceID string, t paymentdomain.ReferenceType) error {
	return apperror.New(apperror.ErrNotFound,
		"No payment transactions where found for reference id: %s and referenceType: %s", referenceID, t)
}
