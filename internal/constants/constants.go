package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaFetchBackoff = time.Second
)

const (
	RegistryTrigger = "registry-service"
	RegistryQueue   = "registry-service-done"
	CallTrigger     = "registry-service-done"
	CallQueue       = "call-service-done"
	BillTrigger     = "call-service-done"
	BillQueue       = "bill-service-done"
)

const (
	RegistryServiceName = "RegistryService"
	CallServiceName     = "CallService"
	BillServiceName     = "BillService"
)

const (
	WorkerServiceName = "pipeline-worker"
	APIServiceName    = "billing-api"
)

const (
	CacheKeyPrefixTask = "task:"
	DefaultTaskTTL     = 24 * time.Hour
)

const (
	DefaultMongoDBName   = "telbill"
	BillsCollection      = "bills"
	DefaultPostgresTable = "calls"
)

const (
	ShutdownTimeout    = 5 * time.Second
	HealthCheckTimeout = 5 * time.Second
	ConnectTimeout     = 30 * time.Second
)

// Subscriber numbers are an area code plus an 8 or 9 digit number.
const (
	DefaultSourceRule      = `kind != "start" || source.matches("^[0-9]{10,11}$")`
	DefaultDestinationRule = `kind != "start" || destination.matches("^[0-9]{10,11}$")`
	SubscriberRuleMessage  = "Ensure this field is a phone number with 10 or 11 digits."
)

const (
	PeriodLayout        = "2006-01"
	DisplayPeriodLayout = "Jan/2006"
	CallDateLayout      = "2006-01-02"
	CallTimeLayout      = "15:04:05"
)
