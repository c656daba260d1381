/*
Package session owns donor session state between turns.

A Manager runs at most one turn per session id at a time. Turns for the same donor queue on an
in-process mutex and, when a DistributedLocker is configured, on a Redis lock shared by every
replica. WithSession is the only write path used by the runner: it loads or creates the state,
hands it to the turn and saves it only if the turn succeeded.
*/
package session
