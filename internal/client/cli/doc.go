// Package cli is the interactive terminal client for the chat server.
//
// The client connects to one server instance, offers a login/register menu
// and, once logged in, reads commands of the form name[:args]:
//
//	help                       show the command list
//	chat:<id>:<msg>            send a direct message
//	addfriend:<id>             add a friend
//	creategroup:<name>:<desc>  create a group
//	addgroup:<id>              join a group
//	groupchat:<id>:<msg>       send a group message
//	history[:<id>]             show stored messages, optionally with one user
//	show                       show the current user, friends and groups
//	loginout                   log out and return to the menu
//	quit                       leave the program
//
// Messages pushed by the server are printed as they arrive and stored in a
// local SQLite history.
package cli
