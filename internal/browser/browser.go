// Package browser walks lessons in a headless Chrome and reports what
// only shows up client side: script exceptions, empty panes and code
// lines pointing at blocks that were never rendered.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Options configures a Checker.
type Options struct {
	// RemoteURL is the DevTools endpoint of a running Chrome, such as
	// http://localhost:9222. When empty a local Chrome is launched.
	RemoteURL string

	// StepTimeout bounds how long one step may take to appear (default: 10s)
	StepTimeout time.Duration

	Logger zerolog.Logger
}

// Problem is one finding on one step.
type Problem struct {
	LessonID string
	Step     string // "current/total", empty before the lesson loaded
	Message  string
}

func (p Problem) String() string {
	if p.Step == "" {
		return fmt.Sprintf("%s: %s", p.LessonID, p.Message)
	}
	return fmt.Sprintf("%s step %s: %s", p.LessonID, p.Step, p.Message)
}

// Checker holds one browser.
type Checker struct {
	opts        Options
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

// New starts (or connects to) Chrome.
func New(ctx context.Context, opts Options) (*Checker, error) {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 10 * time.Second
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		flags := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, flags...)
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	// Start the browser now so a missing Chrome fails here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &Checker{opts: opts, allocCancel: allocCancel, browserCtx: browserCtx, cancel: cancel}, nil
}

// Close shuts the browser down.
func (c *Checker) Close() {
	c.cancel()
	c.allocCancel()
}

const (
	counterJS   = `document.getElementById('stepCounter').textContent.trim()`
	displayJS   = `document.getElementById('displayPane').children.length`
	codeJS      = `document.getElementById('codePane').children.length`
	danglingJS  = `Array.from(document.querySelectorAll('#codePane [data-display-block]')).map(el => el.getAttribute('data-display-block')).filter(id => !document.querySelector('#displayPane [data-block-id="' + id + '"]'))`
	connectedJS = `document.body.dataset.connected === 'true'`
)

// CheckLesson opens baseURL/lessons/id and steps through the whole lesson.
func (c *Checker) CheckLesson(baseURL, id string) ([]Problem, error) {
	tab, cancel := chromedp.NewContext(c.browserCtx)
	defer cancel()

	var mu sync.Mutex
	var problems []Problem
	step := ""
	report := func(msg string) {
		mu.Lock()
		problems = append(problems, Problem{LessonID: id, Step: step, Message: msg})
		mu.Unlock()
	}

	chromedp.ListenTarget(tab, func(ev interface{}) {
		if ev, ok := ev.(*runtime.EventExceptionThrown); ok {
			report("script error: " + ev.ExceptionDetails.Error())
		}
	})

	url := strings.TrimSuffix(baseURL, "/") + "/lessons/" + id
	c.opts.Logger.Debug().Str("lesson", id).Str("url", url).Msg("opening lesson")

	var connected bool
	if err := c.run(tab,
		chromedp.Navigate(url),
		chromedp.WaitReady("#displayPane", chromedp.ByID),
		chromedp.Poll(connectedJS, &connected, chromedp.WithPollingTimeout(c.opts.StepTimeout)),
	); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}

	for {
		var counter string
		if err := c.run(tab, chromedp.Evaluate(counterJS, &counter)); err != nil {
			return nil, err
		}
		current, total, ok := parseCounter(counter)
		if !ok {
			report(fmt.Sprintf("unreadable step counter %q", counter))
			break
		}

		mu.Lock()
		step = fmt.Sprintf("%d/%d", current, total)
		mu.Unlock()
		c.checkStep(tab, report)

		if current >= total {
			break
		}
		next := fmt.Sprintf("%d / %d", current+1, total)
		var moved bool
		err := c.run(tab,
			chromedp.Click("#nextStep", chromedp.ByID),
			chromedp.Poll(fmt.Sprintf(`%s === %q`, counterJS, next), &moved,
				chromedp.WithPollingTimeout(c.opts.StepTimeout)),
		)
		if err != nil {
			report("next step did not load: " + err.Error())
			break
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return problems, nil
}

func (c *Checker) checkStep(tab context.Context, report func(string)) {
	var display, code int
	var dangling []string
	if err := c.run(tab,
		chromedp.Evaluate(displayJS, &display),
		chromedp.Evaluate(codeJS, &code),
		chromedp.Evaluate(danglingJS, &dangling),
	); err != nil {
		report("failed to inspect step: " + err.Error())
		return
	}
	if display == 0 {
		report("display pane is empty")
	}
	if code == 0 {
		report("code pane is empty")
	}
	for _, id := range dangling {
		report(fmt.Sprintf("code line points at block %q which is not rendered", id))
	}
}

func (c *Checker) run(tab context.Context, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(tab, c.opts.StepTimeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func parseCounter(s string) (current, total int, ok bool) {
	if _, err := fmt.Sscanf(s, "%d / %d", &current, &total); err != nil {
		return 0, 0, false
	}
	return current, total, current >= 1 && current <= total
}
