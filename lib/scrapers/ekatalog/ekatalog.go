package ekatalog

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"pricewatch-backend/lib/htmlutil"
	"pricewatch-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/ekatalog")

const host = "www.e-katalog.ru"
const pricesUrlFormat = "https://" + host + "/ek-item.php?idg_=%s&view_=prices&order_=price"

// the item's price table is missing or listed no shops, the engine
// treats this as a soft condition and keeps checking
var ErrNoOffers = fmt.Errorf("no offers listed for this item")

// the linked page carries no item id or display name
var ErrItemNotFound = fmt.Errorf("item not found")

// Offer is one row of the "where to buy" table, in page order.
type Offer struct {
	ShopName string
	Price    int
}

type Client struct {
	http *resty.Client
}

func NewClient() *Client {
	client := resty.New()
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	telemetry.InstrumentResty(client, "scrapers/ekatalog/http")

	return &Client{http: client}
}

// reports whether the link points at the supported catalog domain,
// checked before any resolution request is made
func (c *Client) IsSupportedLink(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	return parsed.Host == host
}

// fetches an item page and extracts its stable id and display name
func (c *Client) ResolveItem(ctx context.Context, link string) (itemId string, itemName string, err error) {
	ctx, span := tracer.Start(ctx, "ResolveItem")
	defer span.End()
	span.SetAttributes(attribute.String("link", link))

	res, err := c.http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch item page")
		return "", "", fmt.Errorf("fetch item page: %w", err)
	}
	if res.StatusCode() != 200 {
		err = fmt.Errorf("fetch item page: unexpected status %d", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status")
		return "", "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return "", "", err
	}
	return parseItem(doc)
}

func parseItem(doc *goquery.Document) (itemId string, itemName string, err error) {
	itemId = doc.Find(`meta[itemprop="sku"]`).AttrOr("content", "")
	itemName = doc.Find("div#top-page-title").AttrOr("data-txt-title", "")
	if itemId == "" || itemName == "" {
		return "", "", ErrItemNotFound
	}
	return itemId, itemName, nil
}

// fetches the ordered shop/price rows of the item's price table. rows come
// back in page order, cheapest first as served by the catalog. returns
// ErrNoOffers when the table is missing or has no parseable rows.
func (c *Client) FetchOffers(ctx context.Context, itemId string) ([]Offer, error) {
	ctx, span := tracer.Start(ctx, "FetchOffers")
	defer span.End()
	span.SetAttributes(attribute.String("item_id", itemId))

	res, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf(pricesUrlFormat, itemId))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch price table")
		return nil, fmt.Errorf("fetch price table: %w", err)
	}
	if res.StatusCode() != 200 {
		err = fmt.Errorf("fetch price table: unexpected status %d", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status")
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, err
	}

	offers, err := parseOffers(doc)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("offer_count", len(offers)))
	return offers, nil
}

func parseOffers(doc *goquery.Document) ([]Offer, error) {
	table := doc.Find("#item-wherebuy-table")
	if table.Length() == 0 {
		return nil, ErrNoOffers
	}

	var offers []Offer
	// the html5 tree builder wraps the rows in a tbody whether or not the
	// page wrote one, so rows are selected through it rather than as
	// direct children of the table
	table.Find(`tbody > tr[class*="shop"]`).Each(func(_ int, row *goquery.Selection) {
		name := htmlutil.CleanText(row.Find("td.where-buy-description a.it-shop").Text())
		if name == "" {
			return
		}

		// the first child of the price cell is the current price, the
		// rest is strikethrough history and cashback noise
		priceCell := row.Find("td.where-buy-price")
		if len(priceCell.Nodes) == 0 || priceCell.Nodes[0].FirstChild == nil {
			return
		}
		priceText := htmlutil.GetText(priceCell.Nodes[0].FirstChild)
		price, err := strconv.Atoi(htmlutil.DigitsOnly(priceText))
		if err != nil {
			return
		}

		offers = append(offers, Offer{ShopName: name, Price: price})
	})

	if len(offers) == 0 {
		return nil, ErrNoOffers
	}
	return offers, nil
}
