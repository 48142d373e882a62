package main

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"campus/internal/database"
)

const apiAdmin = "admin"

var (
	apiBaseURL string
	apiKey     string
)

type ResponseError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

var apiServiceBase = func() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL).
		SetHeader("Accept", "application/json").
		SetHeader("X-API-Key", apiKey).
		SetError(&ResponseError{}).
		OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() >= 400 {
				// resty only fills the error object when the body
				// unmarshals; plain-text error bodies leave it nil.
				if respErr, ok := resp.Error().(*ResponseError); ok && respErr != nil {
					if respErr.Message != "" {
						return fmt.Errorf("%s", respErr.Message)
					}
					if respErr.Error != "" {
						return fmt.Errorf("%s", respErr.Error)
					}
				}
				return fmt.Errorf("%s", resp.Status())
			}

			return nil
		})
}

var rootCmd = &cobra.Command{
	Use:   "campusctl",
	Short: "Campus administration CLI",
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create <handle> <email>",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		role, _ := cmd.Flags().GetString("role")

		type createResponse struct {
			Account      database.Account `json:"account"`
			TempPassword string           `json:"temp_password"`
		}

		resp, err := apiServiceBase().R().
			SetBody(map[string]string{
				"display_name": args[0],
				"email":        args[1],
				"role":         role,
			}).
			SetResult(&createResponse{}).
			Post(apiAdmin + "/accounts")

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		created := resp.Result().(*createResponse)

		fmt.Println("Account ID    :", created.Account.ID)
		fmt.Println("Handle        :", created.Account.DisplayName)
		fmt.Println("Email         :", created.Account.Email)
		fmt.Println("Role          :", created.Account.Role)
		fmt.Println("Temp password :", created.TempPassword)
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetResult(&[]database.Account{}).
			Get(apiAdmin + "/accounts")

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		accounts := resp.Result().(*[]database.Account)
		for _, acct := range *accounts {
			active := "active"
			if !acct.IsActive {
				active = "inactive"
			}
			fmt.Printf("%s  %-20s %-30s %-8s %s\n", acct.ID, acct.DisplayName, acct.Email, acct.Role, active)
		}
	},
}

var accountResetPasswordCmd = &cobra.Command{
	Use:   "reset-password <account_id>",
	Short: "Reset an account password",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		type resetResponse struct {
			TempPassword string `json:"temp_password"`
		}

		resp, err := apiServiceBase().R().
			SetResult(&resetResponse{}).
			Post(fmt.Sprintf("%s/accounts/%s/reset-password", apiAdmin, args[0]))

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		reset := resp.Result().(*resetResponse)

		fmt.Println("Temp password :", reset.TempPassword)
	},
}

var accountUnlockCmd = &cobra.Command{
	Use:   "unlock <account_id>",
	Short: "Clear an account lockout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, err := apiServiceBase().R().
			Post(fmt.Sprintf("%s/accounts/%s/unlock", apiAdmin, args[0]))

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		fmt.Println("Account unlocked")
	},
}

var accountAuthKeyCmd = &cobra.Command{
	Use:   "auth-key <account_id>",
	Short: "Create a new auth key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetResult(&database.AuthKey{}).
			Post(fmt.Sprintf("%s/accounts/%s/auth-key", apiAdmin, args[0]))

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		authKey := resp.Result().(*database.AuthKey)

		fmt.Println("Account ID :", authKey.AccountID)
		fmt.Println("Key        :", authKey.Key)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "http://localhost:3000/api", "management API base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("CAMPUS_API_KEY"), "admin API key")

	accountCreateCmd.Flags().String("role", database.RoleStudent, "account role (admin, teacher or student)")

	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountResetPasswordCmd)
	accountCmd.AddCommand(accountUnlockCmd)
	accountCmd.AddCommand(accountAuthKeyCmd)
	rootCmd.AddCommand(accountCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
