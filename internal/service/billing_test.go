package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartvid/smartvid/internal/apperr"
	"github.com/smartvid/smartvid/internal/integrations/paystack"
	"github.com/smartvid/smartvid/internal/integrations/stripepay"
	"github.com/smartvid/smartvid/internal/logger"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/realtime"
	"github.com/smartvid/smartvid/internal/repository"
)

type billingFixture struct {
	users  *mockUsers
	subs   *mockSubs
	videos *mockVideos
	stripe *mockStripe
	ps     *mockPaystack
	rec    *recorder
	svc    *BillingService
}

func newBillingFixture(withStripe, withPaystack bool) *billingFixture {
	f := &billingFixture{
		users: &mockUsers{}, subs: &mockSubs{}, videos: &mockVideos{},
		stripe: &mockStripe{}, ps: &mockPaystack{}, rec: &recorder{},
	}
	usage := NewUsageService(f.videos, f.subs, nil, logger.Nop())
	notifier := NewNotifier(f.rec, f.users, f.rec, f.rec, "https://smartvid.test/", logger.Nop())
	var sg StripeGateway
	if withStripe {
		sg = f.stripe
	}
	var pg PaystackGateway
	if withPaystack {
		pg = f.ps
	}
	f.svc = NewBillingService(f.users, f.subs, usage, notifier, sg, pg, f.rec, logger.Nop())
	return f
}

// expectUsage lets the quota refresh after an upsert succeed.
func (f *billingFixture) expectUsage(userID uint64) {
	f.subs.On("ActiveForUser", mock.Anything, userID).Return(model.Subscription{}, repository.ErrNotFound).Maybe()
	f.videos.On("CountSince", mock.Anything, userID, mock.Anything).Return(0, nil).Maybe()
}

func TestCheckoutStripeCreatesCustomer(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(true, false)
	f.users.On("GetByID", ctx, uint64(7)).Return(model.User{ID: 7, Email: "a@b.co"}, nil)
	f.users.On("GetProfile", ctx, uint64(7)).Return(model.Profile{UserID: 7}, nil)
	f.stripe.On("EnsureCustomer", ctx, "", "a@b.co", uint64(7)).Return("cus_new", nil)
	f.users.On("SetStripeCustomer", ctx, uint64(7), "cus_new").Return(nil)
	f.stripe.On("CreateCheckout", ctx, stripepay.CheckoutParams{
		UserID: 7, CustomerID: "cus_new", Plan: model.PlanPro,
		SuccessURL: "https://smartvid.test/dashboard?checkout=success",
		CancelURL:  "https://smartvid.test/pricing?checkout=cancelled",
	}).Return(stripepay.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil)

	res, err := f.svc.Checkout(ctx, 7, model.PlanPro, model.ProviderStripe)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", res.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", res.URL)
	f.users.AssertExpectations(t)
}

func TestCheckoutPaystack(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(false, true)
	f.users.On("GetByID", ctx, uint64(7)).Return(model.User{ID: 7, Email: "a@b.co"}, nil)
	f.ps.On("InitializeTransaction", ctx, mock.MatchedBy(func(p paystack.CheckoutParams) bool {
		return p.UserID == 7 && p.Plan == model.PlanBusiness && p.Email == "a@b.co"
	})).Return(paystack.Checkout{AuthorizationURL: "https://paystack.test/pay", Reference: "ref_1"}, nil)

	res, err := f.svc.Checkout(ctx, 7, model.PlanBusiness, model.ProviderPaystack)
	require.NoError(t, err)
	assert.Equal(t, CheckoutResult{URL: "https://paystack.test/pay", SessionID: "ref_1"}, res)
}

func TestCheckoutRejections(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(false, false)
	_, err := f.svc.Checkout(ctx, 7, model.PlanFree, model.ProviderStripe)
	assert.ErrorIs(t, err, ErrInvalidPlan)

	f.users.On("GetByID", ctx, uint64(7)).Return(model.User{ID: 7, Email: "a@b.co"}, nil)
	_, err = f.svc.Checkout(ctx, 7, model.PlanPro, model.ProviderStripe)
	assert.ErrorIs(t, err, apperr.ErrDisabled)
	_, err = f.svc.Checkout(ctx, 7, model.PlanPro, "paypal")
	assert.ErrorIs(t, err, ErrInvalidProvider)
}

func TestCancelStripe(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(true, false)
	end := time.Now().Add(48 * time.Hour)
	live := model.Subscription{UserID: 3, Provider: model.ProviderStripe, ProviderSubscriptionID: "sub_9",
		Plan: model.PlanPro, Status: model.SubActive, CurrentPeriodEnd: &end}
	f.subs.On("ActiveForUser", ctx, uint64(3)).Return(live, nil)
	canceled := live
	canceled.UserID = 0
	canceled.CancelAtPeriodEnd = true
	f.stripe.On("CancelAtPeriodEnd", ctx, "sub_9").Return(canceled, nil)
	f.subs.On("Upsert", ctx, mock.MatchedBy(func(s model.Subscription) bool {
		return s.UserID == 3 && s.CancelAtPeriodEnd
	})).Return(nil)
	f.videos.On("CountSince", ctx, uint64(3), mock.Anything).Return(1, nil)
	f.users.On("GetByID", ctx, uint64(3)).Return(model.User{ID: 3, Email: "c@d.co"}, nil)

	sub, err := f.svc.Cancel(ctx, 3)
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, []string{model.NotifySubscription}, f.rec.noteTypes())
	assert.Len(t, f.rec.mail, 1)
}

func TestApplyStripeSubscriptionUpdatedResolvesCustomer(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(true, false)
	sub := model.Subscription{Provider: model.ProviderStripe, ProviderCustomerID: "cus_5",
		ProviderSubscriptionID: "sub_5", Plan: model.PlanBusiness, Status: model.SubActive}
	f.stripe.On("ParseWebhook", []byte("{}"), "sig").Return(stripepay.Event{
		ID: "evt_1", Type: stripepay.EventSubscriptionUpdated, Subscription: &sub,
	}, nil)
	f.subs.On("GetByProviderID", ctx, "sub_5").Return(model.Subscription{}, repository.ErrNotFound)
	f.users.On("FindByStripeCustomer", ctx, "cus_5").Return(uint64(11), nil)
	f.subs.On("Upsert", ctx, mock.MatchedBy(func(s model.Subscription) bool { return s.UserID == 11 })).Return(nil)
	f.expectUsage(11)
	f.users.On("GetByID", ctx, uint64(11)).Return(model.User{ID: 11, Email: "e@f.co"}, nil)

	require.NoError(t, f.svc.ApplyStripeEvent(ctx, []byte("{}"), "sig"))
	f.subs.AssertExpectations(t)
	assert.Contains(t, f.rec.events, realtime.EventSubscriptionUpdated)
	assert.Contains(t, f.rec.events, realtime.EventNotificationCreated)
}

func TestApplyStripeBadSignature(t *testing.T) {
	f := newBillingFixture(true, false)
	f.stripe.On("ParseWebhook", mock.Anything, "bad").Return(stripepay.Event{}, errors.New("signature mismatch"))
	err := f.svc.ApplyStripeEvent(context.Background(), []byte("{}"), "bad")
	assert.ErrorIs(t, err, ErrInvalidWebhook)
}

func TestApplyStripeUnknownEventIgnored(t *testing.T) {
	f := newBillingFixture(true, false)
	f.stripe.On("ParseWebhook", mock.Anything, "sig").Return(stripepay.Event{ID: "evt", Type: "customer.created"}, nil)
	assert.NoError(t, f.svc.ApplyStripeEvent(context.Background(), []byte("{}"), "sig"))
	assert.Empty(t, f.rec.events)
}

func TestApplyStripePaymentFailedMarksPastDue(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(true, false)
	f.stripe.On("ParseWebhook", mock.Anything, "sig").Return(stripepay.Event{
		Type: stripepay.EventPaymentFailed, CustomerID: "cus_5", SubscriptionID: "sub_5",
	}, nil)
	f.subs.On("GetByProviderID", ctx, "sub_5").Return(model.Subscription{
		UserID: 11, ProviderSubscriptionID: "sub_5", Plan: model.PlanPro, Status: model.SubActive,
	}, nil)
	f.subs.On("Upsert", ctx, mock.MatchedBy(func(s model.Subscription) bool { return s.Status == model.SubPastDue })).Return(nil)
	f.expectUsage(11)

	require.NoError(t, f.svc.ApplyStripeEvent(ctx, []byte("{}"), "sig"))
	assert.Equal(t, []string{model.NotifyPaymentFailed}, f.rec.noteTypes())
}

func TestApplyPaystackSubscriptionCreateByEmail(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(false, true)
	ps := paystack.Subscription{
		Subscription: model.Subscription{Provider: model.ProviderPaystack, ProviderCustomerID: "CUS_1",
			ProviderSubscriptionID: "SUB_1", Plan: model.PlanPro, Status: model.SubActive},
		CustomerEmail: "p@q.co",
	}
	f.ps.On("ParseWebhook", mock.Anything, "sig").Return(paystack.Event{
		Type: paystack.EventSubscriptionCreate, Plan: model.PlanPro, CustomerEmail: "p@q.co", Subscription: &ps,
	}, nil)
	f.users.On("GetByEmail", ctx, "p@q.co").Return(model.User{ID: 21, Email: "p@q.co"}, nil)
	f.subs.On("Upsert", ctx, mock.MatchedBy(func(s model.Subscription) bool {
		return s.UserID == 21 && s.ProviderSubscriptionID == "SUB_1"
	})).Return(nil)
	f.expectUsage(21)
	f.users.On("GetByID", ctx, uint64(21)).Return(model.User{ID: 21, Email: "p@q.co"}, nil)

	require.NoError(t, f.svc.ApplyPaystackEvent(ctx, []byte("{}"), "sig"))
	f.subs.AssertExpectations(t)
	require.Len(t, f.rec.mail, 1)
	assert.Equal(t, "p@q.co", f.rec.mail[0].ToEmail)
}

func TestApplyPaystackDisabled(t *testing.T) {
	f := newBillingFixture(false, false)
	assert.ErrorIs(t, f.svc.ApplyPaystackEvent(context.Background(), nil, ""), apperr.ErrDisabled)
}
