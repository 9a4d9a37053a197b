package automation

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ike-ops/expedientes-cli/internal/config"
)

// Portal is the page interaction capability the engine drives. The concrete
// rod-backed driver is swappable without touching the search/reconcile logic.
type Portal interface {
	// Login authenticates the session against the portal root.
	Login(ctx context.Context, username, password string) error
	// OpenSearch ensures the session is on the search listing page and the
	// search input is present. Idempotent: it only navigates when needed.
	OpenSearch(ctx context.Context) error
	// Search clears the input, types the expediente id and submits.
	Search(ctx context.Context, id string) error
	// FirstRow returns the first result row's cell texts, or nil when the
	// portal rendered no results.
	FirstRow(ctx context.Context) ([]string, error)
	// Liberate clicks the row's action button and confirms the modal.
	Liberate(ctx context.Context) error
	// Close shuts the browser down. Safe to call more than once.
	Close(ctx context.Context) error
}

// ErrLogin means credentials were rejected or the login form never appeared.
var ErrLogin = eris.New("automation: portal login failed")

// The portal markup is not stable across versions; candidates are tried in
// order and the first match wins.
var searchInputSelectors = []string{
	`input[placeholder="No. Expediente:*"]`,
	`input[formcontrolname="expediente"]`,
	`input.mat-mdc-input-element`,
	`input[type="text"]`,
}

const (
	usernameSelector  = `input[formcontrolname="username"]`
	passwordSelector  = `input[formcontrolname="password"]`
	submitSelector    = `button[type="submit"]`
	resultRowSelector = `table tbody tr`
	noResultsSelector = `.no-results`
	rowButtonSelector = `table tbody tr td:first-child button`
	modalButtonMatch  = `.cdk-overlay-container button`
)

// rodPortal drives the provider portal through a single rod page.
type rodPortal struct {
	cfg     config.PortalConfig
	browser *rod.Browser
	page    *rod.Page
}

// NewPortal launches a visible browser bound to a discovered local
// executable and opens the single page the session will use.
func NewPortal(ctx context.Context, cfg config.PortalConfig) (Portal, error) {
	bin := cfg.BrowserPath
	if bin == "" {
		found, err := ResolveBrowserExecutable(runtime.GOOS)
		if err != nil {
			return nil, err
		}
		bin = found
	}

	controlURL, err := launcher.New().
		Bin(bin).
		Headless(false).
		Leakless(true).
		Launch()
	if err != nil {
		return nil, eris.Wrap(err, "automation: launch browser")
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, eris.Wrap(err, "automation: connect browser")
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return nil, eris.Wrap(err, "automation: open page")
	}

	zap.L().Info("browser session started", zap.String("bin", bin))
	return &rodPortal{cfg: cfg, browser: browser, page: page}, nil
}

func (p *rodPortal) loginTimeout() time.Duration {
	return time.Duration(p.cfg.LoginTimeoutSecs) * time.Second
}

func (p *rodPortal) searchTimeout() time.Duration {
	return time.Duration(p.cfg.SearchTimeoutSecs) * time.Second
}

func (p *rodPortal) typeDelay() time.Duration {
	return time.Duration(p.cfg.TypeDelayMs) * time.Millisecond
}

func (p *rodPortal) settleDelay() time.Duration {
	return time.Duration(p.cfg.SettleDelayMs) * time.Millisecond
}

func (p *rodPortal) Login(ctx context.Context, username, password string) error {
	page := p.page.Context(ctx)

	if err := page.Timeout(p.loginTimeout()).Navigate(p.cfg.BaseURL); err != nil {
		return eris.Wrap(err, "automation: navigate to portal")
	}
	_ = page.Timeout(p.loginTimeout()).WaitLoad()

	userEl, err := page.Timeout(p.loginTimeout()).Element(usernameSelector)
	if err != nil {
		return eris.Wrap(ErrLogin, "username field never appeared")
	}
	passEl, err := page.Timeout(p.loginTimeout()).Element(passwordSelector)
	if err != nil {
		return eris.Wrap(ErrLogin, "password field never appeared")
	}

	// Small inter-keystroke delay keeps the portal's client-side validation
	// happy; it is not a security measure.
	if err := p.typeSlowly(userEl, username); err != nil {
		return eris.Wrap(err, "automation: type username")
	}
	if err := p.typeSlowly(passEl, password); err != nil {
		return eris.Wrap(err, "automation: type password")
	}

	submit, err := page.Timeout(p.loginTimeout()).Element(submitSelector)
	if err != nil {
		return eris.Wrap(ErrLogin, "submit button not found")
	}

	wait := page.Timeout(p.loginTimeout()).WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return eris.Wrap(err, "automation: click submit")
	}
	wait()

	// Success is the absence of the password field after navigation.
	still, _, err := page.Has(passwordSelector)
	if err != nil {
		return eris.Wrap(err, "automation: verify login")
	}
	if still {
		return ErrLogin
	}

	zap.L().Info("portal login completed")
	return nil
}

func (p *rodPortal) OpenSearch(ctx context.Context) error {
	page := p.page.Context(ctx)

	info, err := page.Info()
	if err != nil {
		return eris.Wrap(err, "automation: page info")
	}
	if !strings.Contains(info.URL, hostOf(p.cfg.BaseURL)) {
		if err := page.Timeout(p.loginTimeout()).Navigate(p.cfg.BaseURL + p.cfg.SearchPath); err != nil {
			return eris.Wrap(err, "automation: navigate to search page")
		}
		p.sleep(ctx, p.settleDelay())
	}

	if _, err := p.searchInput(page); err != nil {
		return err
	}
	return nil
}

func (p *rodPortal) Search(ctx context.Context, id string) error {
	page := p.page.Context(ctx)

	el, err := p.searchInput(page)
	if err != nil {
		return err
	}

	// Triple-click selects any previous value, then clear programmatically.
	if err := el.Click(proto.InputMouseButtonLeft, 3); err != nil {
		return eris.Wrap(err, "automation: select search input")
	}
	p.sleep(ctx, 300*time.Millisecond)
	if _, err := el.Eval(`() => this.value = ""`); err != nil {
		return eris.Wrap(err, "automation: clear search input")
	}

	if err := p.typeSlowly(el, id); err != nil {
		return eris.Wrap(err, "automation: type expediente id")
	}
	p.sleep(ctx, 300*time.Millisecond)

	if btn, err := page.Timeout(2 * time.Second).ElementR("button", "/buscar/i"); err == nil {
		if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return eris.Wrap(err, "automation: click search button")
		}
	} else {
		if err := page.Keyboard.Type(input.Enter); err != nil {
			return eris.Wrap(err, "automation: press enter")
		}
	}

	// Wait for either a result row or the no-results marker. Neither showing
	// up within the bound is tolerated and treated as no results downstream.
	deadline := time.Now().Add(p.searchTimeout())
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if has, _, _ := page.Has(resultRowSelector); has {
			break
		}
		if has, _, _ := page.Has(noResultsSelector); has {
			break
		}
		p.sleep(ctx, 250*time.Millisecond)
	}
	p.sleep(ctx, p.settleDelay())

	return nil
}

func (p *rodPortal) FirstRow(ctx context.Context) ([]string, error) {
	page := p.page.Context(ctx)

	has, row, err := page.Has(resultRowSelector)
	if err != nil {
		return nil, eris.Wrap(err, "automation: query result row")
	}
	if !has {
		return nil, nil
	}

	cells, err := row.Elements("td")
	if err != nil {
		return nil, eris.Wrap(err, "automation: query result cells")
	}

	out := make([]string, 0, len(cells))
	for _, cell := range cells {
		text, err := cell.Text()
		if err != nil {
			return nil, eris.Wrap(err, "automation: read cell text")
		}
		out = append(out, strings.TrimSpace(text))
	}
	return out, nil
}

func (p *rodPortal) Liberate(ctx context.Context) error {
	page := p.page.Context(ctx)

	// The action control carries no stable label, so it is located
	// structurally: the nested button in the row's first cell.
	trigger, err := page.Timeout(2 * time.Second).Element(rowButtonSelector)
	if err != nil {
		return eris.New("automation: liberation trigger button not found")
	}
	if err := trigger.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return eris.Wrap(err, "automation: click liberation trigger")
	}

	p.sleep(ctx, 2*time.Second)

	confirm, err := page.Timeout(5*time.Second).ElementR(modalButtonMatch, "/aceptar|accept/i")
	if err != nil {
		return eris.New("automation: liberation confirm control not found")
	}
	if err := confirm.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return eris.Wrap(err, "automation: click liberation confirm")
	}

	p.sleep(ctx, 3*time.Second)
	return nil
}

func (p *rodPortal) Close(ctx context.Context) error {
	if p.browser == nil {
		return nil
	}
	p.sleep(ctx, 500*time.Millisecond)
	err := p.browser.Close()
	p.browser = nil
	p.page = nil
	if err != nil {
		return eris.Wrap(err, "automation: close browser")
	}
	zap.L().Info("browser session closed")
	return nil
}

func (p *rodPortal) searchInput(page *rod.Page) (*rod.Element, error) {
	for _, sel := range searchInputSelectors {
		if has, el, err := page.Has(sel); err == nil && has {
			return el, nil
		}
	}
	return nil, eris.New("automation: search input not found")
}

func (p *rodPortal) typeSlowly(el *rod.Element, text string) error {
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return err
		}
		time.Sleep(p.typeDelay())
	}
	return nil
}

func (p *rodPortal) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func hostOf(baseURL string) string {
	s := strings.TrimPrefix(baseURL, "https://")
	s = strings.TrimPrefix(s, "http://")
	host, _, _ := strings.Cut(s, "/")
	return host
}
