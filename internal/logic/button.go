package logic

// Button classifies the samples of one push button into clicks, double clicks
// and long presses.
//
// A Button has a single owner: Tick, the setters and the Attach methods must all
// be called from the same goroutine. Handlers run inline inside Tick and must not
// call Tick themselves.
type Button struct {
	polarity Polarity
	timing   Timing

	state           State
	pressStart      uint32
	release         uint32
	held            uint32
	longPressActive bool

	onClick           func()
	onDoubleClick     func()
	onLongPressStart  func()
	onLongPressStop   func()
	onDuringLongPress func()
}

// NewButton creates an idle button with default timing.
func NewButton(polarity Polarity) *Button {
	return &Button{
		polarity: polarity,
		timing:   DefaultTiming(),
		state:    StateIdle,
	}
}

// Polarity returns the wiring the button was created with.
func (b *Button) Polarity() Polarity { return b.polarity }

// State returns the current state.
func (b *Button) State() State { return b.state }

// IsLongPressed reports whether a long press is in progress.
func (b *Button) IsLongPressed() bool { return b.longPressActive }

// Held returns the length in ms of the most recently completed press.
func (b *Button) Held() uint32 { return b.held }

// Timing returns the current thresholds.
func (b *Button) Timing() Timing { return b.timing }

// SetTiming replaces all thresholds. Takes effect on the next Tick.
func (b *Button) SetTiming(t Timing) { b.timing = t }

// SetDebounce sets the minimum press length and second press gap in ms.
func (b *Button) SetDebounce(ms uint32) { b.timing.Debounce = ms }

// SetClickWindow sets how long after the first press start a second press may begin.
func (b *Button) SetClickWindow(ms uint32) { b.timing.ClickWindow = ms }

// SetLongPress sets the hold time in ms after which a long press starts.
func (b *Button) SetLongPress(ms uint32) { b.timing.LongPress = ms }

// AttachClick sets the click handler. nil clears it.
func (b *Button) AttachClick(fn func()) { b.onClick = fn }

// AttachDoubleClick sets the double click handler. While no double click handler
// is attached, clicks are reported as soon as the button is released.
func (b *Button) AttachDoubleClick(fn func()) { b.onDoubleClick = fn }

// AttachLongPressStart sets the handler fired once when a long press begins.
func (b *Button) AttachLongPressStart(fn func()) { b.onLongPressStart = fn }

// AttachLongPressStop sets the handler fired when a long press is released.
func (b *Button) AttachLongPressStop(fn func()) { b.onLongPressStop = fn }

// AttachDuringLongPress sets the handler fired on every tick of a long press,
// including the tick that started it.
func (b *Button) AttachDuringLongPress(fn func()) { b.onDuringLongPress = fn }

// wantsLongPress reports whether any long press handler is attached. Without
// one, a long hold stays in Pressing and is classified as a click on release.
func (b *Button) wantsLongPress() bool {
	return b.onLongPressStart != nil || b.onDuringLongPress != nil || b.onLongPressStop != nil
}

// Tick advances the state machine with one sample. now is a millisecond clock;
// elapsed times use unsigned subtraction so the counter may wrap.
func (b *Button) Tick(pressed bool, now uint32) {
	t := b.timing

	switch b.state {
	case StateIdle:
		if pressed {
			b.state = StatePressing
			b.pressStart = now
		}

	case StatePressing:
		elapsed := now - b.pressStart
		if !pressed {
			if elapsed < t.Debounce {
				// contact bounce
				b.state = StateIdle
				return
			}
			b.state = StateWaitingSecondPress
			b.release = now
			b.held = elapsed
			if b.onDoubleClick == nil {
				b.resolveClick()
			}
			return
		}
		if elapsed > t.LongPress && b.wantsLongPress() {
			b.state = StateLongPressing
			b.longPressActive = true
			fire(b.onLongPressStart)
			fire(b.onDuringLongPress)
		}

	case StateWaitingSecondPress:
		if b.onDoubleClick == nil || now-b.pressStart > t.ClickWindow {
			b.resolveClick()
			return
		}
		if pressed && now-b.release > t.Debounce {
			b.state = StateConfirmingDoubleClick
			b.pressStart = now
		}

	case StateConfirmingDoubleClick:
		if !pressed && now-b.pressStart > t.Debounce {
			b.state = StateIdle
			b.held = now - b.pressStart
			fire(b.onDoubleClick)
		}

	case StateLongPressing:
		if !pressed {
			b.state = StateIdle
			b.longPressActive = false
			b.held = now - b.pressStart
			fire(b.onLongPressStop)
			return
		}
		fire(b.onDuringLongPress)
	}
}

func (b *Button) resolveClick() {
	b.state = StateIdle
	fire(b.onClick)
}

func fire(fn func()) {
	if fn != nil {
		fn()
	}
}
