/*
Package pinpad implements a POS Link client for Verifone EFTPOS terminals.

A Client sends one request at a time to the terminal over TCP (or any
Transport supplied by a Dialer). For each request it connects, polls the
terminal status, sends the request and reads until the final response,
answering the acknowledgement handshake for every frame.

While a transaction runs the terminal may send display messages and
operator prompts. Display messages are passed to the DisplayHandler.
Prompts are passed to the QueryHandler as a *Query; the request waits
until Query.Answer is called, then sends the answer to the terminal.

Link faults are retried on a new connection. When the outcome of a
transaction cannot be read back, the client either fails with
ErrTransactionFailure or, with the FailQueryOperator strategy, asks the
operator whether the transaction was accepted and returns a manual
response built from the answer.

Basic usage:

	cfg, err := pinpad.NewConfig("10.0.0.20", pinpad.DefaultPort,
		pinpad.WithMerchant(1),
		pinpad.WithQueryHandler(func(q *pinpad.Query) { q.Answer(poslink.AnswerYes) }),
	)
	if err != nil {
		return err
	}

	client := pinpad.NewClient(cfg)
	defer client.Close()

	resp, err := client.Purchase(ctx, poslink.Dollars(10, 0), 0)
*/
package pinpad
