/*
Package wallet serves the read side of a user's wallet.

The view combines the stored balance and tier with the tier's caps, today's limit
counters and the reserved account used for funding. Views are cached per user:

	svc := wallet.NewService(store, tracker, cache, recorder, logger)
	view, err := svc.Get(ctx, userID)

Anything that moves money must call Invalidate for every user it touched once its
transaction has committed. The transfer engine and the webhook reconciler do so
through their WalletInvalidator dependency.

Cache failures never fail a read; the view is rebuilt from the store instead.
*/
package wallet
