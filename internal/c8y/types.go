package c8y

// Fragment and type names used by the bridge on the backend.
const (
	// ExternalIDType is the identity namespace for broker device ids.
	ExternalIDType = "c8y_Serial"

	// DeviceType marks managed objects created from broker devices.
	DeviceType = "c8y_HonoDevice"

	// AgentType marks the bridge's own agent managed object.
	AgentType = "c8y_HonoAgent"
)

// Measurement types created from structured telemetry.
const (
	MeasurementTemperature    = "c8y_TemperatureMeasurement"
	MeasurementBattery        = "c8y_BatteryMeasurement"
	MeasurementSignalStrength = "c8y_SignalStrengthMeasurement"
)

// Event types for the two inbound message kinds.
const (
	EventTypeTelemetry = "hono_Telemetry"
	EventTypeEvent     = "hono_Event"
)

// OperationStatus is the lifecycle state of a device operation.
type OperationStatus string

// Operation lifecycle states. PENDING operations are picked up by the
// dispatcher, moved to EXECUTING while in flight, and finish as either
// SUCCESSFUL or FAILED.
const (
	StatusPending    OperationStatus = "PENDING"
	StatusExecuting  OperationStatus = "EXECUTING"
	StatusSuccessful OperationStatus = "SUCCESSFUL"
	StatusFailed     OperationStatus = "FAILED"
)

// Marker is an empty fragment used to flag capabilities on managed
// objects, marshalling as {}.
type Marker struct{}

// ManagedObject is an inventory object. Only the fields the bridge
// reads or writes are modelled; unknown fragments are ignored.
type ManagedObject struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`

	// IsDevice marks the object as a device in the backend UI.
	IsDevice *Marker `json:"c8y_IsDevice,omitempty"`

	// IsAgent marks the object as an agent able to receive operations.
	IsAgent *Marker `json:"com_cumulocity_model_Agent,omitempty"`

	// LastHonoUpdate is the processing time of the most recent message
	// received for this device, RFC 3339.
	LastHonoUpdate string `json:"lastHonoUpdate,omitempty"`

	ChildDevices *ReferenceCollection `json:"childDevices,omitempty"`
}

// ReferenceCollection is a list of references to other managed objects.
type ReferenceCollection struct {
	References []Reference `json:"references"`
}

// Reference points at one managed object.
type Reference struct {
	ManagedObject Source `json:"managedObject"`
}

// Source identifies a managed object by id.
type Source struct {
	ID string `json:"id"`
}

// ExternalID maps an identity in an external namespace to a managed
// object.
type ExternalID struct {
	ExternalID    string  `json:"externalId"`
	Type          string  `json:"type"`
	ManagedObject *Source `json:"managedObject,omitempty"`
}

// Event is one event record attached to a device.
type Event struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type"`
	Time   string `json:"time"`
	Text   string `json:"text"`
	Source Source `json:"source"`

	// HonoContent carries the message payload: the decoded JSON object
	// for structured payloads, or {"text": "..."} for opaque ones.
	HonoContent map[string]any `json:"hono_Content,omitempty"`
}

// Measurement is one measurement record attached to a device. Fragments
// holds the measurement series keyed by fragment name.
type Measurement struct {
	Type      string                          `json:"type"`
	Time      string                          `json:"time"`
	Source    Source                          `json:"source"`
	Fragments map[string]map[string]ValueUnit `json:"-"`
}

// ValueUnit is one measured value with its unit.
type ValueUnit struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Operation is a device operation created on the backend and executed by
// the bridge. The hono_* fragments describe the command to deliver.
type Operation struct {
	ID            string          `json:"id,omitempty"`
	DeviceID      string          `json:"deviceId,omitempty"`
	Status        OperationStatus `json:"status,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`

	// Command is the command name to deliver. Operations without it are
	// failed without any delivery attempt.
	Command string `json:"hono_Command,omitempty"`

	// OneWay selects fire-and-forget delivery. Absent means one-way.
	OneWay *bool `json:"hono_OneWay,omitempty"`

	Data        string         `json:"hono_Data,omitempty"`
	Headers     map[string]any `json:"hono_Headers,omitempty"`
	ContentType string         `json:"hono_ContentType,omitempty"`
}

// IsOneWay reports whether the operation should be delivered without
// waiting for a device response. Defaults to true when the fragment is
// absent.
func (o Operation) IsOneWay() bool {
	if o.OneWay == nil {
		return true
	}
	return *o.OneWay
}

// TenantOption is one key/value entry in a tenant option category.
type TenantOption struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}
