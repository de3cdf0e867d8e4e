// Package commands implements the odinbots CLI: wallet management, bot
// login, session maintenance and batch trading operations.
package commands
