package domain

// OrderNotification carries everything the notifier needs to message the
// buyer and the operator after a commit. It is assembled before the order
// leaves the pipeline so notification workers never touch the store.
type OrderNotification struct {
	OrderID         int64
	BuyerChatID     string
	BuyerName       string
	AnimalKind      string
	AnimalSize      string
	Quantity        int
	TotalPrice      int64
	DeliveryAddress string
	PaymentMethod   string
}
