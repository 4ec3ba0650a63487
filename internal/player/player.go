// Package player drives a playbin through a wkvsink element: load a URI, play
// it to end of stream, reload on network errors.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"

	videosink "github.com/cbetz421/gst-wk"
	"github.com/cbetz421/gst-wk/gstsink"
)

// playFlagDownload is GST_PLAY_FLAG_DOWNLOAD. playbin does not export its
// flags enum.
const playFlagDownload uint = 0x80

// Config configures a Player.
type Config struct {
	FPSDisplay        bool // wrap the sink in fpsdisplaysink when available
	DownloadBuffering bool
	Reconnect         ReconnectConfig
	Logger            *slog.Logger
}

// Player owns a playbin and its video sink.
type Player struct {
	cfg    Config
	logger *slog.Logger

	playbin  *gst.Element
	sinkElem *gst.Element // the wkvsink element
	sink     videosink.Sink

	mu  sync.Mutex
	uri string

	retry RetryState
}

// New builds the playbin and video sink. gst.Init and gstsink.Register must
// have run.
func New(cfg Config) (*Player, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Reconnect.MaxRetries == 0 && cfg.Reconnect.RetryDelay == 0 {
		cfg.Reconnect = DefaultReconnectConfig()
	}

	playbin, err := gst.NewElement("playbin")
	if err != nil {
		return nil, fmt.Errorf("failed to create playbin: %w", err)
	}

	sinkElem, err := gst.NewElement(gstsink.ElementName)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", gstsink.ElementName, err)
	}
	core, err := gstsink.Lookup(sinkElem)
	if err != nil {
		return nil, err
	}

	videoSink := sinkElem
	if cfg.FPSDisplay {
		if fps, err := gst.NewElement("fpsdisplaysink"); err == nil {
			fps.SetProperty("silent", true)
			fps.SetProperty("text-overlay", false)
			if err := setElementProperty(fps, "video-sink", sinkElem); err != nil {
				return nil, fmt.Errorf("failed to set fpsdisplaysink video-sink: %w", err)
			}
			videoSink = fps
		} else {
			logger.Warn("player: fpsdisplaysink not available, using sink directly", "error", err)
		}
	}
	if err := setElementProperty(playbin, "video-sink", videoSink); err != nil {
		return nil, fmt.Errorf("failed to set video-sink: %w", err)
	}

	return &Player{
		cfg:      cfg,
		logger:   logger,
		playbin:  playbin,
		sinkElem: sinkElem,
		sink:     core,
	}, nil
}

// Sink returns the core sink, for attaching a consumer.
func (p *Player) Sink() videosink.Sink { return p.sink }

// Retries returns the total number of reloads made.
func (p *Player) Retries() uint32 { return p.retry.Total() }

// URI returns the URI currently loaded.
func (p *Player) URI() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uri
}

// Load sets uri on the playbin and prerolls it.
func (p *Player) Load(uri string) error {
	p.mu.Lock()
	p.uri = uri
	p.mu.Unlock()

	if err := p.playbin.SetProperty("uri", uri); err != nil {
		return fmt.Errorf("failed to set uri: %w", err)
	}
	if err := changeState(p.playbin, gst.StatePaused); err != nil {
		return fmt.Errorf("failed to pause %s: %w", uri, err)
	}
	if p.cfg.DownloadBuffering {
		p.setDownloadBuffering()
	}

	p.logger.Info("player: loaded", "uri", uri)
	return nil
}

// Play moves the playbin to PLAYING.
func (p *Player) Play() error {
	if err := changeState(p.playbin, gst.StatePlaying); err != nil {
		return fmt.Errorf("play failed: %w", err)
	}
	return nil
}

// PlayURI loads uri and plays it to end of stream, reloading on network
// errors. It returns nil at end of stream.
func (p *Player) PlayURI(ctx context.Context, uri string) error {
	p.retry.Reset()
	return RunWithRetry(ctx, func(ctx context.Context) error {
		if err := p.Load(uri); err != nil {
			return err
		}
		if err := p.Play(); err != nil {
			return err
		}
		err := p.monitor(ctx)
		if err != nil {
			// Tear down before the next attempt so the reload starts from NULL.
			p.stop()
		}
		return err
	}, p.cfg.Reconnect, &p.retry, p.logger)
}

// Close unlocks the sink and sets the playbin to NULL.
func (p *Player) Close() error {
	p.sink.Unlock()
	err := p.stop()
	gstsink.Forget(p.sinkElem)
	return err
}

func (p *Player) stop() error {
	if err := p.playbin.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to stop playbin: %w", err)
	}
	return nil
}

func (p *Player) setDownloadBuffering() {
	v, err := p.playbin.GetProperty("flags")
	if err != nil {
		p.logger.Warn("player: cannot read playbin flags", "error", err)
		return
	}
	flags, ok := toUint(v)
	if !ok {
		p.logger.Warn("player: unexpected playbin flags type", "type", fmt.Sprintf("%T", v))
		return
	}
	if flags&playFlagDownload != 0 {
		return
	}
	// flags is a GstPlayFlags property; SetArg deserializes into its own type.
	p.playbin.SetArg("flags", fmt.Sprintf("0x%x", flags|playFlagDownload))
	p.logger.Debug("player: download buffering enabled", "flags", fmt.Sprintf("0x%x", flags|playFlagDownload))
}

// setElementProperty sets an element-valued property such as video-sink. The
// value is initialised with the property's own GType, which g_object_set
// requires.
func setElementProperty(target *gst.Element, name string, value *gst.Element) error {
	propType, err := target.GetPropertyType(name)
	if err != nil {
		return err
	}
	v, err := glib.ValueInit(propType)
	if err != nil {
		return err
	}
	v.SetInstance(value.Native())
	return target.SetPropertyValue(name, v)
}

func toUint(v interface{}) (uint, bool) {
	switch n := v.(type) {
	case uint:
		return n, true
	case uint32:
		return uint(n), true
	case uint64:
		return uint(n), true
	case int:
		return uint(n), n >= 0
	case int32:
		return uint(n), n >= 0
	case int64:
		return uint(n), n >= 0
	default:
		return 0, false
	}
}

// stateElement is the part of *gst.Element state changes need.
type stateElement interface {
	GetState() gst.State
	SetState(gst.State) error
}

var _ stateElement = (*gst.Element)(nil)

// errStateChange is returned when an element refuses a state change.
var errStateChange = errors.New("state change failed")

// changeState moves elem to state. A failure is tolerated when elem is already
// in the neighbouring paused/playing state, since async transitions report
// failure while the previous change is still settling.
func changeState(elem stateElement, state gst.State) error {
	current := elem.GetState()
	if current == state {
		return nil
	}

	err := elem.SetState(state)
	if err == nil {
		return nil
	}

	pausedOrPlaying := gst.StatePlaying
	if state == gst.StatePlaying {
		pausedOrPlaying = gst.StatePaused
	}
	if current == pausedOrPlaying {
		return nil
	}
	return fmt.Errorf("%w: %s → %s: %w", errStateChange, current, state, err)
}

// pollInterval bounds how long the monitor blocks on the bus between context
// checks.
const pollInterval = 50 * time.Millisecond
