package uorb

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Messages are stored as CBOR so every Copy hands out an independent value
// and publishers cannot mutate what subscribers read.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	if encMode, err = encOpts.EncMode(); err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

func encode(msg any) ([]byte, error) {
	return encMode.Marshal(msg)
}

func decode(data []byte, dst any) error {
	return decMode.Unmarshal(data, dst)
}
