package service_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/internal/catalog/events"
	"github.com/yoozak/yoozak-backend/internal/catalog/repository"
	"github.com/yoozak/yoozak-backend/internal/catalog/service"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
	"github.com/yoozak/yoozak-backend/pkg/money"
	"github.com/yoozak/yoozak-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	if testutil.ShortMode() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func newService(t *testing.T) (*service.CatalogService, *testutil.MockPublisher) {
	t.Helper()
	testutil.SkipIfShort(t)
	suite.Reset(t)

	pub := testutil.NewMockPublisher()
	svc := service.NewCatalogService(
		suite.DB,
		repository.NewArticleRepository(suite.DB),
		repository.NewVariantRepository(suite.DB),
		repository.NewPromotionRepository(suite.DB),
		events.NewCatalogEventPublisherWith(pub, logger.Nop()),
		5,
		logger.Nop(),
	)
	return svc, pub
}

func currentPrice(t *testing.T, id string) money.Money {
	t.Helper()
	var p money.Money
	require.NoError(t, suite.RawDB.Get(&p, `SELECT current_price FROM articles WHERE id = $1`, id))
	return p
}

func TestCreateArticle_DefaultsAndDuplicateReference(t *testing.T) {
	svc, pub := newService(t)
	ctx := context.Background()

	a, err := svc.CreateArticle(ctx, &service.ArticleInput{Reference: "YZ-100", Name: "Mule cuir", BasePrice: 24900})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseActive, a.Phase)
	assert.Equal(t, money.Money(24900), a.CurrentPrice)
	assert.Equal(t, 5, a.LowStockThreshold)
	pub.AssertEventPublished(t, messaging.EventArticleCreated)

	_, err = svc.CreateArticle(ctx, &service.ArticleInput{Reference: "YZ-100", Name: "Copy", BasePrice: 100})
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestPromotionLifecycle_RecomputesPrices(t *testing.T) {
	svc, pub := newService(t)
	ctx := context.Background()

	a, err := svc.CreateArticle(ctx, &service.ArticleInput{Reference: "YZ-200", Name: "Sabot", BasePrice: 20000})
	require.NoError(t, err)

	now := time.Now().UTC()
	promo, err := svc.CreatePromotion(ctx, &service.PromotionInput{
		Name:            "Soldes",
		DiscountPercent: 25,
		StartsAt:        now.Add(-time.Hour),
		EndsAt:          now.Add(time.Hour),
		ArticleIDs:      []string{a.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, money.Money(15000), currentPrice(t, a.ID))
	pub.AssertEventPublished(t, messaging.EventPriceChanged)

	// A smaller overlapping promotion does not change the price
	_, err = svc.CreatePromotion(ctx, &service.PromotionInput{
		Name:            "Flash",
		DiscountPercent: 10,
		StartsAt:        now.Add(-time.Hour),
		EndsAt:          now.Add(time.Hour),
		ArticleIDs:      []string{a.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, money.Money(15000), currentPrice(t, a.ID))

	_, err = svc.DeactivatePromotion(ctx, promo.ID)
	require.NoError(t, err)
	assert.Equal(t, money.Money(18000), currentPrice(t, a.ID))

	_, err = svc.ActivatePromotion(ctx, promo.ID)
	require.NoError(t, err)
	assert.Equal(t, money.Money(15000), currentPrice(t, a.ID))

	require.NoError(t, svc.DeletePromotion(ctx, promo.ID))
	assert.Equal(t, money.Money(18000), currentPrice(t, a.ID))
}

func TestLiquidationIgnoresPromotions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a, err := svc.CreateArticle(ctx, &service.ArticleInput{Reference: "YZ-300", Name: "Botte", BasePrice: 50000})
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = svc.CreatePromotion(ctx, &service.PromotionInput{
		Name: "Hiver", DiscountPercent: 40, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour),
		ArticleIDs: []string{a.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, money.Money(30000), currentPrice(t, a.ID))

	_, err = svc.UpdateArticle(ctx, a.ID, &service.ArticleInput{
		Reference: a.Reference, Name: a.Name, BasePrice: 50000, Phase: domain.PhaseLiquidation,
	})
	require.NoError(t, err)
	assert.Equal(t, money.Money(50000), currentPrice(t, a.ID))
}

func TestRecomputeAll_PicksUpStartedPromotion(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a, err := svc.CreateArticle(ctx, &service.ArticleInput{Reference: "YZ-400", Name: "Espadrille", BasePrice: 10000})
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = svc.CreatePromotion(ctx, &service.PromotionInput{
		Name: "Demain", DiscountPercent: 50, StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour),
		ArticleIDs: []string{a.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, money.Money(10000), currentPrice(t, a.ID))

	svc.SetClock(func() time.Time { return now.Add(90 * time.Minute) })
	changes, err := svc.RecomputeAll(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, money.Money(5000), currentPrice(t, a.ID))

	svc.SetClock(func() time.Time { return now.Add(3 * time.Hour) })
	_, err = svc.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, money.Money(10000), currentPrice(t, a.ID))
}

func TestNextPriceBoundary(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	svc.SetClock(func() time.Time { return now })

	next, err := svc.NextPriceBoundary(ctx)
	require.NoError(t, err)
	assert.True(t, next.IsZero())

	_, err = svc.CreatePromotion(ctx, &service.PromotionInput{
		Name: "Semaine", DiscountPercent: 15, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.CreatePromotion(ctx, &service.PromotionInput{
		Name: "Nuit", DiscountPercent: 30, StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	next, err = svc.NextPriceBoundary(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Hour), next, time.Millisecond)
}

func TestUpdatePromotion_ReplacesArticles(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a1, err := svc.CreateArticle(ctx, &service.ArticleInput{Reference: "YZ-501", Name: "A", BasePrice: 10000})
	require.NoError(t, err)
	a2, err := svc.CreateArticle(ctx, &service.ArticleInput{Reference: "YZ-502", Name: "B", BasePrice: 10000})
	require.NoError(t, err)

	now := time.Now().UTC()
	in := &service.PromotionInput{
		Name: "Switch", DiscountPercent: 20, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour),
		ArticleIDs: []string{a1.ID},
	}
	p, err := svc.CreatePromotion(ctx, in)
	require.NoError(t, err)

	in.ArticleIDs = []string{a2.ID}
	p, err = svc.UpdatePromotion(ctx, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, []string{a2.ID}, p.ArticleIDs)
	assert.Equal(t, money.Money(10000), currentPrice(t, a1.ID))
	assert.Equal(t, money.Money(8000), currentPrice(t, a2.ID))
}

func TestVariants(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a, err := svc.CreateArticle(ctx, &service.ArticleInput{Reference: "YZ-600", Name: "Derby", Color: "noir", BasePrice: 10000})
	require.NoError(t, err)

	v, err := svc.CreateVariant(ctx, a.ID, &service.VariantInput{Size: "41"})
	require.NoError(t, err)
	assert.Equal(t, "noir", v.Color)
	assert.Equal(t, 0, v.Quantity)

	_, err = svc.CreateVariant(ctx, a.ID, &service.VariantInput{Size: "41", Color: "noir"})
	assert.Error(t, err, "duplicate size/color")

	found, err := svc.LookupVariant(ctx, "", "YZ-600", "41", "NOIR")
	require.NoError(t, err)
	assert.Equal(t, v.ID, found.ID)

	require.NoError(t, svc.DeleteVariant(ctx, v.ID))
	variants, err := svc.ListVariants(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, variants)
}
