package backtest

import "errors"

// ErrInputMismatch reports inputs the engine refuses to simulate: an intent
// sequence whose length differs from the series, or an intent outside the
// flat/long/short set. The run fails fast; nothing is partially simulated.
var ErrInputMismatch = errors.New("intents do not match series")
