package costs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/shopspring/decimal"

	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/template"
)

// Billed hours in the estimate month.
const hoursPerMonth = 730

// DefaultCacheTTL bounds how long a looked-up price is reused.
const DefaultCacheTTL = time.Hour

// regionLocations maps region codes onto the location names the
// pricing catalog filters by.
var regionLocations = map[string]string{
	"us-east-1":      "US East (N. Virginia)",
	"us-east-2":      "US East (Ohio)",
	"us-west-1":      "US West (N. California)",
	"us-west-2":      "US West (Oregon)",
	"ca-central-1":   "Canada (Central)",
	"eu-west-1":      "EU (Ireland)",
	"eu-west-2":      "EU (London)",
	"eu-central-1":   "EU (Frankfurt)",
	"ap-south-1":     "Asia Pacific (Mumbai)",
	"ap-southeast-1": "Asia Pacific (Singapore)",
	"ap-southeast-2": "Asia Pacific (Sydney)",
	"ap-northeast-1": "Asia Pacific (Tokyo)",
	"sa-east-1":      "South America (Sao Paulo)",
}

// Flat monthly defaults for resources whose cost is dominated by usage
// rather than instance hours. Each carries the assumption it encodes.
var (
	flatBucketMonthly   = decimal.NewFromFloat(2.30)  // 100 GB standard storage
	flatTableMonthly    = decimal.NewFromFloat(2.50)  // on-demand capacity, light traffic
	flatDatabaseMonthly = decimal.NewFromFloat(11.68) // db.t4g.micro on-demand
)

// PricingAPI is the slice of the pricing client the estimator uses.
// Narrowed for substitution in tests.
type PricingAPI interface {
	GetProducts(ctx context.Context, params *pricing.GetProductsInput,
		optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error)
}

// LineItem is the estimated cost of one document resource.
type LineItem struct {
	LogicalID  string          `json:"logicalId"`
	Type       string          `json:"type"`
	HourlyUSD  decimal.Decimal `json:"hourlyUsd"`
	MonthlyUSD decimal.Decimal `json:"monthlyUsd"`
	Assumption string          `json:"assumption,omitempty"`
}

// Estimate is the projected cost of running a compiled document.
type Estimate struct {
	Region      string          `json:"region"`
	HourlyUSD   decimal.Decimal `json:"hourlyUsd"`
	MonthlyUSD  decimal.Decimal `json:"monthlyUsd"`
	Lines       []LineItem      `json:"lines"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// Estimator prices compiled documents against the live pricing
// catalog. Instance rates are cached so repeated estimates of the same
// shapes do not hammer the catalog, which is heavily rate limited.
type Estimator struct {
	api    PricingAPI
	cache  *priceCache
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Estimator.
type Option func(*Estimator) error

// WithCacheTTL sets how long looked-up prices are reused.
func WithCacheTTL(d time.Duration) Option {
	return func(e *Estimator) error {
		if d <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Estimator", "WithCacheTTL",
				"ttl must be positive")
		}
		e.cache.ttl = d
		return nil
	}
}

// WithLogger sets the estimator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Estimator) error {
		if logger != nil {
			e.logger = logger.With("component", "costs")
		}
		return nil
	}
}

// New creates an estimator over the given pricing client. Build the
// client with pricing.NewFromConfig; the pricing endpoint only exists
// in us-east-1 regardless of where stacks deploy.
func New(api PricingAPI, opts ...Option) (*Estimator, error) {
	if api == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Estimator", "New",
			"pricing client cannot be nil")
	}
	e := &Estimator{
		api:    api,
		cache:  newPriceCache(DefaultCacheTTL, time.Now),
		logger: slog.Default().With("component", "costs"),
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, errors.WrapInvalid(err, "Estimator", "New", "apply option")
		}
	}
	return e, nil
}

// InstanceHourly returns the on-demand hourly USD rate for a Linux
// instance of the given type in the given region.
func (e *Estimator) InstanceHourly(ctx context.Context, instanceType, region string) (decimal.Decimal, error) {
	location, ok := regionLocations[region]
	if !ok {
		return decimal.Zero, errors.WrapInvalid(
			fmt.Errorf("unknown region %q", region),
			"Estimator", "InstanceHourly", "resolve pricing location")
	}

	key := region + "/" + instanceType
	if price, ok := e.cache.get(key); ok {
		return price, nil
	}

	out, err := e.api.GetProducts(ctx, &pricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		MaxResults:  aws.Int32(1),
		Filters: []pricingtypes.Filter{
			termMatch("instanceType", instanceType),
			termMatch("operatingSystem", "Linux"),
			termMatch("preInstalledSw", "NA"),
			termMatch("tenancy", "Shared"),
			termMatch("capacitystatus", "Used"),
			termMatch("location", location),
		},
	})
	if err != nil {
		return decimal.Zero, errors.WrapTransient(err, "Estimator", "InstanceHourly",
			"query pricing catalog for "+instanceType)
	}
	if len(out.PriceList) == 0 {
		return decimal.Zero, errors.WrapInvalid(
			fmt.Errorf("no on-demand offer for %s in %s", instanceType, region),
			"Estimator", "InstanceHourly", "match pricing catalog")
	}

	price, err := parseOnDemandUSD(out.PriceList[0])
	if err != nil {
		return decimal.Zero, errors.WrapTransient(err, "Estimator", "InstanceHourly",
			"parse offer for "+instanceType)
	}

	e.cache.set(key, price)
	e.logger.Debug("price resolved", "instance_type", instanceType,
		"region", region, "usd_per_hour", price)
	return price, nil
}

// EstimateDocument prices every billable resource of a compiled
// document: instances at their live on-demand rate times 730 hours,
// storage resources at flat monthly defaults. Free glue resources
// (roles, instance profiles) produce no line.
func (e *Estimator) EstimateDocument(ctx context.Context, doc *template.Document, region string) (*Estimate, error) {
	if doc == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("document is nil"),
			"Estimator", "EstimateDocument", "validate document")
	}
	if _, ok := regionLocations[region]; !ok {
		return nil, errors.WrapInvalid(fmt.Errorf("unknown region %q", region),
			"Estimator", "EstimateDocument", "resolve pricing location")
	}

	est := &Estimate{Region: region, GeneratedAt: e.now().UTC()}
	for _, lid := range doc.ResourceNames() {
		res, ok := doc.Resource(lid)
		if !ok {
			continue
		}
		line, err := e.lineFor(ctx, lid, res, region)
		if err != nil {
			return nil, err
		}
		if line == nil {
			continue
		}
		est.Lines = append(est.Lines, *line)
		est.HourlyUSD = est.HourlyUSD.Add(line.HourlyUSD)
		est.MonthlyUSD = est.MonthlyUSD.Add(line.MonthlyUSD)
	}
	return est, nil
}

func (e *Estimator) lineFor(ctx context.Context, lid string, res *template.Resource, region string) (*LineItem, error) {
	switch res.Type {
	case "AWS::EC2::Instance":
		instanceType, _ := res.Properties["InstanceType"].(string)
		if instanceType == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("instance %s has no InstanceType", lid),
				"Estimator", "EstimateDocument", "read instance type")
		}
		hourly, err := e.InstanceHourly(ctx, instanceType, region)
		if err != nil {
			return nil, err
		}
		return &LineItem{
			LogicalID:  lid,
			Type:       res.Type,
			HourlyUSD:  hourly,
			MonthlyUSD: hourly.Mul(decimal.NewFromInt(hoursPerMonth)),
			Assumption: fmt.Sprintf("%s on-demand Linux, %d hours/month", instanceType, hoursPerMonth),
		}, nil
	case "AWS::S3::Bucket":
		return flatLine(lid, res.Type, flatBucketMonthly, "flat default: 100 GB standard storage"), nil
	case "AWS::DynamoDB::Table":
		return flatLine(lid, res.Type, flatTableMonthly, "flat default: on-demand capacity, light traffic"), nil
	case "AWS::RDS::DBInstance":
		return flatLine(lid, res.Type, flatDatabaseMonthly, "flat default: db.t4g.micro on-demand"), nil
	default:
		return nil, nil
	}
}

func flatLine(lid, resourceType string, monthly decimal.Decimal, assumption string) *LineItem {
	return &LineItem{
		LogicalID:  lid,
		Type:       resourceType,
		HourlyUSD:  monthly.DivRound(decimal.NewFromInt(hoursPerMonth), 6),
		MonthlyUSD: monthly,
		Assumption: assumption,
	}
}

func termMatch(field, value string) pricingtypes.Filter {
	return pricingtypes.Filter{
		Type:  pricingtypes.FilterTypeTermMatch,
		Field: aws.String(field),
		Value: aws.String(value),
	}
}

// priceItem is the slice of a pricing catalog entry the estimator
// reads: terms -> OnDemand -> (offer) -> priceDimensions ->
// (dimension) -> pricePerUnit -> USD.
type priceItem struct {
	Terms struct {
		OnDemand map[string]struct {
			PriceDimensions map[string]struct {
				PricePerUnit map[string]string `json:"pricePerUnit"`
			} `json:"priceDimensions"`
		} `json:"OnDemand"`
	} `json:"terms"`
}

// parseOnDemandUSD digs the USD rate out of one catalog entry. The
// catalog keys offers and dimensions by opaque ids, so the first
// entry of each map is taken; on-demand entries carry exactly one
// price dimension per offer.
func parseOnDemandUSD(raw string) (decimal.Decimal, error) {
	var item priceItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return decimal.Zero, fmt.Errorf("decode catalog entry: %w", err)
	}
	for _, offer := range item.Terms.OnDemand {
		for _, dim := range offer.PriceDimensions {
			usd, ok := dim.PricePerUnit["USD"]
			if !ok {
				continue
			}
			price, err := decimal.NewFromString(usd)
			if err != nil {
				return decimal.Zero, fmt.Errorf("parse USD rate %q: %w", usd, err)
			}
			return price, nil
		}
	}
	return decimal.Zero, fmt.Errorf("catalog entry has no on-demand USD dimension")
}
