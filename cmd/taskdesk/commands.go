package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"taskdesk/domain"
	"taskdesk/notify"
	"taskdesk/order"
	"taskdesk/session"
	"taskdesk/taskexport"
)

func newSendCodeCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send-code <手机号|邮箱>",
		Short: "发送登录验证码",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.app.guard.SendCode(cmd.Context(), args[0]); err != nil {
				return err
			}
			o.app.notifier.Notify(notify.Success, "", "验证码已发送")
			return nil
		},
	}
}

func newLoginCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login <手机号|邮箱> <验证码>",
		Short: "验证码登录",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := o.app.guard.Login(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "登录成功：%s\n", session.DisplayFor(sess.Account).Name)
			return nil
		},
	}
}

func newLogoutCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "退出登录",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.app.guard.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "已退出登录")
			return nil
		},
	}
}

func newProfileCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "查看账号与积分",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := o.app.guard.LoadProfile(cmd.Context())
			out := cmd.OutOrStdout()
			if v.State == session.StateLoggedOut {
				return order.ErrNotLoggedIn
			}
			fmt.Fprintf(out, "账号：%s %s\n", v.Display.Avatar, v.Display.Name)
			fmt.Fprintf(out, "可用积分：%d\n冻结积分：%d\n", v.AvailablePoints, v.FrozenPoints)
			if v.State == session.StateLoggedInUnverified {
				fmt.Fprintln(out, "登录状态待确认，下次操作时将重新验证")
			}
			return nil
		},
	}
}

func newWhoamiCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "查询服务端用户信息",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := o.app.client.UserInfo(cmd.Context())
			if !res.Success {
				return errors.New(res.Message)
			}
			var info domain.UserInfo
			if err := res.Decode(&info); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "用户ID：%s\n账号：%s\n", info.UserID, info.Account)
			return nil
		},
	}
}

func newPointsCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "points",
		Short: "查询积分余额",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !o.app.guard.EnsureLoggedIn(cmd.Context()) {
				return order.ErrNotLoggedIn
			}
			res := o.app.client.PointsBalance(cmd.Context())
			if !res.Success {
				return errors.New(res.Message)
			}
			var b domain.PointsBalance
			if err := res.Decode(&b); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "可用积分：%d\n冻结积分：%d\n", b.AvailablePoints, b.FrozenPoints)
			return nil
		},
	}
}

func newOrderCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "提交与管理订单",
	}
	cmd.AddCommand(
		newParagraphCommand(o),
		newArticleCommand(o),
		newEssayCommand(o),
		&cobra.Command{
			Use:   "show <订单号>",
			Short: "查看订单详情",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := o.app.orderFlow().Detail(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, raw)
			},
		},
		&cobra.Command{
			Use:   "cancel <订单号>",
			Short: "取消订单",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.app.orderFlow().Cancel(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func newParagraphCommand(o *rootOptions) *cobra.Command {
	var content, file string
	var wait bool
	cmd := &cobra.Command{
		Use:   "paragraph",
		Short: "段落降重",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				content = string(b)
			}
			sub, err := o.app.orderFlow().SubmitParagraph(cmd.Context(), order.ParagraphForm{Content: content}, wait)
			if err != nil {
				return err
			}
			printSubmission(cmd, sub)
			return nil
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "待降重的段落内容")
	cmd.Flags().StringVar(&file, "file", "", "从文本文件读取段落内容")
	cmd.Flags().BoolVar(&wait, "wait", true, "提交后等待处理结果")
	return cmd
}

func newArticleCommand(o *rootOptions) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "article <文档>...",
		Short: "文章降重",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := o.app.orderFlow().SubmitArticle(cmd.Context(), order.ArticleForm{Files: args}, wait)
			if err != nil {
				return err
			}
			printSubmission(cmd, sub)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "提交后等待处理结果")
	return cmd
}

type essayOptions struct {
	form order.EssayForm
	wait bool
}

func (e *essayOptions) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&e.form.Title, "title", "", "论文标题")
	flagSet.StringVar(&e.form.Field, "field", "", "专业领域")
	flagSet.IntVar(&e.form.TargetWords, "words", 0, "目标字数")
	flagSet.StringVar(&e.form.DataStatus, "data-status", "none", "数据情况: none|need_no_data|in_files")
	flagSet.StringVar(&e.form.CitationFormat, "citation", "none", "参考文献格式: gbt|apa|none")
	flagSet.StringSliceVar(&e.form.DeliveryTypes, "delivery", []string{"论文"}, "交付文件类型，可多选")
	flagSet.StringVar(&e.form.WritingRequirements, "requirements", "", "写作与特殊要求")
	flagSet.StringSliceVar(&e.form.Files, "attach", nil, "参考资料文件，可多选")
	flagSet.BoolVar(&e.wait, "wait", false, "提交后等待处理结果")
}

func newEssayCommand(o *rootOptions) *cobra.Command {
	opts := &essayOptions{}
	cmd := &cobra.Command{
		Use:   "essay",
		Short: "范文生成",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := o.app.orderFlow().SubmitEssay(cmd.Context(), opts.form, opts.wait)
			if err != nil {
				return err
			}
			printSubmission(cmd, sub)
			return nil
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func printSubmission(cmd *cobra.Command, sub order.Submission) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "订单号：%s\n", sub.Receipt.OrderNo)
	if !sub.Polled {
		fmt.Fprintln(out, `可在"我的任务"中查看进度：taskdesk tasks list`)
		return
	}
	if sub.Task != nil && sub.Task.FileURL != nil && *sub.Task.FileURL != "" {
		fmt.Fprintf(out, "结果文件：%s\n", *sub.Task.FileURL)
	}
}

func newTasksCommand(o *rootOptions) *cobra.Command {
	var refresh bool
	list := &cobra.Command{
		Use:   "list",
		Short: "我的任务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := o.app.orderFlow()
			if refresh {
				rep, err := f.RefreshAll(cmd.Context())
				if err != nil {
					return err
				}
				o.app.logger.Debug("tasks refreshed", "total", rep.Total, "updated", rep.Updated, "failed", rep.Failed)
			}
			printTasks(cmd, o.app.cache.SortedForDisplay())
			return nil
		},
	}
	list.Flags().BoolVar(&refresh, "refresh", true, "列出前向服务端刷新状态")

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "本地任务列表",
	}
	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "refresh",
			Short: "刷新全部任务状态",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				rep, err := o.app.orderFlow().RefreshAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "共 %d 个任务，已更新 %d 个，失败 %d 个\n", rep.Total, rep.Updated, rep.Failed)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <订单号>",
			Short: "从本地列表删除任务",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.app.orderFlow().Remove(args[0])
			},
		},
		&cobra.Command{
			Use:   "download <订单号>",
			Short: "输出结果文件链接",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := o.app.orderFlow().Download(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), u)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status <任务ID>",
			Short: "按任务ID查询任务状态",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := o.app.orderFlow().TaskStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "订单号：%s\n状态：%s\n", t.OrderNo, t.Status.Desc())
				return nil
			},
		},
		&cobra.Command{
			Use:   "export <输出.xlsx>",
			Short: "导出任务列表为 Excel",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := taskexport.WriteFile(args[0], o.app.cache.SortedForDisplay()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "已导出到 %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func printTasks(cmd *cobra.Command, tasks []domain.TaskSnapshot) {
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, taskexport.EmptyText)
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join([]string{"创建时间", "功能", "标题", "订单号", "状态", "进度"}, "\t"))
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d%%\n",
			t.CreateTime.Local().Format(taskexport.TimeLayout), t.OrderType.Name(), t.Title, t.OrderNo, t.Status.Desc(), t.Progress)
	}
	_ = w.Flush()
}

func newRechargeCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recharge <金额>",
		Short: "充值积分",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			f := o.app.rechargeFlow(func(paymentNo, payURL string) {
				if payURL != "" {
					fmt.Fprintf(out, "支付链接：%s\n", payURL)
				}
				fmt.Fprintf(out, "取消支付：taskdesk payment cancel %s\n", paymentNo)
			})
			res, err := f.Pay(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "支付单号：%s 状态：%s\n", res.Session.PaymentNo, res.Session.Status.Desc())
			return nil
		},
	}
}

func newPaymentCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "支付单操作",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status <支付单号>",
			Short: "查询支付状态",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ps, err := o.app.rechargeFlow(nil).Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "支付单号：%s\n金额：¥%s\n状态：%s\n", ps.PaymentNo, ps.Amount.StringFixed(2), ps.Status.Desc())
				return nil
			},
		},
		&cobra.Command{
			Use:   "cancel <支付单号>",
			Short: "取消支付",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.app.rechargeFlow(nil).Cancel(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func printJSON(cmd *cobra.Command, raw json.RawMessage) error {
	if len(raw) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "{}")
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
