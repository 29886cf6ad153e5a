package algorithm

import "errors"

var errWrongWidth = errors.New("algorithm: child element has the wrong width")
